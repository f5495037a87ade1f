// Package logs reads the rotated klyppr log file for `klyppr logs`. Last
// returns the final lines with bounded memory; Follow streams lines appended
// afterwards and starts over when rotation truncates or replaces the file.
package logs
