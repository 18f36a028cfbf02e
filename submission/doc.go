// Package submission turns a command line and an optional program into an
// all-ruby report.
//
// A submission is parsed with shell quoting rules, staged once in a
// temporary file and run in one sandbox per enabled image, all
// concurrently. The result frames of the sandboxes are decoded and
// concatenated in image order, then grouped by the report package.
//
// When some images fail, the report is built from the others and the
// failures are listed as notes. When every image fails, the response is the
// first failure as plain text: a timeout reads "time limit exceeded (<T>
// sec.)", a crashed sandbox its first line of output.
//
// Usage:
//
//	svc := submission.New(logger, cfg, runner)
//	resp, err := svc.Handle(ctx, submission.Submission{Command: "-e 'p 1'"}, nil)
//	if err != nil {
//	    return err
//	}
//	if resp == nil {
//	    // not a command
//	}
package submission
