package extract

import "fmt"

// LoadError means the bytes of a file could not be fetched.
type LoadError struct {
	Filename string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Filename, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FileError means a file was fetched but could not be read as a document.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// EmptyDocumentError means the documents hold too little text to analyze.
type EmptyDocumentError struct {
	Chars int
	Min   int
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("documents contain no usable text (%d characters, minimum %d)", e.Chars, e.Min)
}
