package spawn

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// writeSetupError marshals a SetupError onto the error pipe as
// operation, errno, then the raw Arg bytes, matching original_source's
// job_process_error_read/job_process_error_abort wire format: fixed
// header, variable trailer, whole message readable in one shot because
// the pipe's write end is O_CLOEXEC and closes automatically on a
// successful exec.
func writeSetupError(w *os.File, op Op, errno Errno, arg string) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, wireRecord{
		Operation: int32(op),
		Errno:     int32(errno),
	})
	buf.WriteString(arg)
	// Best-effort: if the parent has already gone away there is nothing
	// further to report and the child is about to exit anyway.
	_, _ = w.Write(buf.Bytes())
}

// readSetupError reads whatever the child wrote before either exiting or
// successfully exec'ing (in which case it reads io.EOF with no bytes and
// returns nil, nil).
func readSetupError(r *os.File) (*SetupError, error) {
	var hdr wireRecord
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, err
	}
	arg, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &SetupError{Operation: Op(hdr.Operation), Errno: Errno(hdr.Errno), Arg: string(arg)}, nil
}
