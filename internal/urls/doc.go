// Package urls holds documentation links shown by the command-line tools.
package urls
