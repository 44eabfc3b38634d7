// Package normalisers turns attached and indexed files into page-split
// text. Each sub-package handles one family of formats; the Registry in
// this package dispatches on file extension.
//
// Pages are separated by form feed characters, which is how text
// exporters such as pdftotext mark page breaks.
package normalisers
