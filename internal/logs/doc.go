// Package logs reads the batch log file for `cardrender logs`.
//
// Last reads the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context ends.
package logs
