package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion is written into every batch and checked on decode.
const FormatVersion = 1

// FailurePrefix starts the failure frame written by EncodeFailure.
const FailurePrefix = "error: "

// NoOutputLine replaces the first line of an empty failure frame.
const NoOutputLine = "(sandbox produced no output)"

// Field numbers of the batch and result messages.
const (
	batchVersionField protowire.Number = 1
	batchResultField  protowire.Number = 2

	resultVersionField  protowire.Number = 1
	resultStdoutField   protowire.Number = 2
	resultStderrField   protowire.Number = 3
	resultExitCodeField protowire.Number = 4
)

// ErrMalformed is returned when an ok frame cannot be decoded.
var ErrMalformed = errors.New("malformed result frame")

var headerPattern = regexp.MustCompile(`\Aok:(\d+)\n`)

// Result is the outcome of running one interpreter build.
type Result struct {
	Version  string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// FailureError reports a sandbox that did not produce an ok frame.
type FailureError struct {
	Line string
}

func (e *FailureError) Error() string {
	return "sandbox failure: " + e.Line
}

// Encode writes a success frame for results to w.
func Encode(w io.Writer, results []Result) error {
	body := protowire.AppendTag(nil, batchVersionField, protowire.VarintType)
	body = protowire.AppendVarint(body, FormatVersion)

	for _, r := range results {
		body = protowire.AppendTag(body, batchResultField, protowire.BytesType)
		body = protowire.AppendBytes(body, marshalResult(r))
	}

	if _, err := fmt.Fprintf(w, "ok:%d\n", len(results)); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}

// EncodeFailure writes a single-line failure frame to w.
func EncodeFailure(w io.Writer, msg string) error {
	line := FailurePrefix + firstLine([]byte(msg)) + "\n"
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("failed to write failure frame: %w", err)
	}
	return nil
}

// Decode parses the captured output of one sandbox invocation.
//
// Output without an ok header yields a *FailureError. A broken ok frame
// yields an error wrapping ErrMalformed.
func Decode(data []byte) ([]Result, error) {
	m := headerPattern.FindSubmatch(data)
	if m == nil {
		return nil, &FailureError{Line: firstLine(data)}
	}

	count, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad count %q", ErrMalformed, m[1])
	}

	body := data[len(m[0]):]
	version := uint64(0)
	// count is untrusted; every result takes at least one byte of body.
	results := make([]Result, 0, min(count, len(body)))

	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		body = body[n:]

		switch {
		case num == batchVersionField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			version = v
			body = body[n:]
		case num == batchResultField && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			r, err := unmarshalResult(raw)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			body = body[n:]
		}
	}

	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformed, version)
	}
	if len(results) != count {
		return nil, fmt.Errorf("%w: header announced %d results, got %d", ErrMalformed, count, len(results))
	}

	return results, nil
}

func marshalResult(r Result) []byte {
	var b []byte
	b = protowire.AppendTag(b, resultVersionField, protowire.BytesType)
	b = protowire.AppendString(b, r.Version)
	b = protowire.AppendTag(b, resultStdoutField, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Stdout)
	b = protowire.AppendTag(b, resultStderrField, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Stderr)
	b = protowire.AppendTag(b, resultExitCodeField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.ExitCode)))
	return b
}

func unmarshalResult(b []byte) (Result, error) {
	var r Result
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == resultVersionField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Version = v
			b = b[n:]
		case num == resultStdoutField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Stdout = bytes.Clone(v)
			b = b[n:]
		case num == resultStderrField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Stderr = bytes.Clone(v)
			b = b[n:]
		case num == resultExitCodeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.ExitCode = int(protowire.DecodeZigZag(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Result{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	line := string(bytes.TrimRight(data, "\r"))
	if line == "" {
		return NoOutputLine
	}
	return line
}
