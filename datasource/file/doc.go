// Package file provides a PointSource which reads points from a set of files on disk.
// Every file matching the glob is parsed in lexical order and the points are concatenated,
// so all files must agree on the number of attributes.
package file
