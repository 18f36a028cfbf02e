// Package protocol implements the framing a sandbox uses to hand
// per-interpreter results back to the host.
//
// A success frame is the line "ok:<N>" followed by a protobuf-wire encoded
// batch of exactly N results. Any other output is a failure frame whose
// first line is meant for the end user.
//
// Usage:
//
//	if err := protocol.Encode(os.Stdout, results); err != nil {
//	    return err
//	}
//
//	results, err := protocol.Decode(output)
//	var failure *protocol.FailureError
//	if errors.As(err, &failure) {
//	    fmt.Println(failure.Line)
//	}
package protocol
