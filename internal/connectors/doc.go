// Package connectors provides access to the places documents come from.
// The filesystem connector resolves and reads local files and watches
// attached files for changes.
package connectors
