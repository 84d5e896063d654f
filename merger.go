package contentset

import "io"

// Combiner resolves a path collision during AddDirectory by producing
// merged bytes from the old and new content streams. It must fully consume
// both readers and emit eagerly into out; the caller closes the streams
// afterward. The cheapest representation in Go is exactly this function
// type, matching the "abstract operation handle" design note.
type Combiner func(old, new io.Reader, out io.Writer) error
