// Package crawler implements the metascan pipeline: link discovery on a source
// page, document download, PDF header sniffing, metadata normalization and the
// engine that ties them together and hands the records to a table writer.
package crawler
