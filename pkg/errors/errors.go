// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/template"

	goerrors "github.com/go-errors/errors"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"sigs.k8s.io/ktail/pkg/config"
	"sigs.k8s.io/ktail/pkg/source"
)

const (
	DefaultErrorExitCode       = 1
	SourceFailureErrorExitCode = 2
)

var errorMsgForType map[reflect.Type]string
var statusCodeForType map[reflect.Type]int

//nolint:gochecknoinits
func init() {
	errorMsgForType = make(map[reflect.Type]string)
	errorMsgForType[reflect.TypeOf(source.FailureError{})] = `
The {{.err.Stream}} stream ended unexpectedly: {{.err.Err}}

Check that the cluster is reachable and that the current user can watch
pods and events and read pod logs, then run "{{.cmdNameBase}} watch" again.
`

	errorMsgForType[reflect.TypeOf(config.InvalidConfigError{})] = `
Invalid configuration: {{.err.Field}}: {{.err.Reason}}
`

	statusCodeForType = make(map[reflect.Type]int)
	statusCodeForType[reflect.TypeOf(source.FailureError{})] = SourceFailureErrorExitCode
}

// CheckErr looks up the appropriate error message and exit status for known
// errors. It will print the information to the provided io.Writer. If we
// don't know the error, it delegates to the error handling in cmdutil.
func CheckErr(w io.Writer, err error, cmdNameBase string) {
	if err == nil {
		return
	}
	errText, found := textForError(err, cmdNameBase)
	if found {
		exitStatus := findErrExitCode(err)
		if len(errText) > 0 {
			if !strings.HasSuffix(errText, "\n") {
				errText += "\n"
			}
			fmt.Fprint(w, errText)
		}
		os.Exit(exitStatus)
	}

	cmdutil.CheckErr(err)
}

// textForError looks up the error message based on the type of the error,
// or of the first error it wraps that has a message.
func textForError(baseErr error, cmdNameBase string) (string, bool) {
	knownErr, found := findKnownErr(baseErr)
	if !found {
		return "", false
	}
	errType, _ := findErrType(knownErr)
	tmplText := errorMsgForType[errType]

	tmpl, err := template.New("errMsg").Parse(tmplText)
	if err != nil {
		// Just return false here instead of the error. It will just
		// mean a less informative error message and we rather show the
		// original error.
		return "", false
	}
	var b bytes.Buffer
	err = tmpl.Execute(&b, map[string]interface{}{
		"cmdNameBase": cmdNameBase,
		"err":         knownErr,
	})
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(b.String()), true
}

// findKnownErr walks the chain of wrapped errors and returns the first one
// with a registered message.
func findKnownErr(err error) (error, bool) {
	for err != nil {
		if errType, found := findErrType(err); found {
			if _, found := errorMsgForType[errType]; found {
				return err, true
			}
		}
		err = unwrap(err)
	}
	return nil, false
}

// unwrap also looks inside errors carrying a stack trace, which do not
// implement Unwrap.
func unwrap(err error) error {
	if stackErr, ok := err.(*goerrors.Error); ok {
		return stackErr.Err
	}
	return errors.Unwrap(err)
}

// findErrType finds the type of the error. It returns the real type in the
// event the error is actually a pointer to a type.
func findErrType(err error) (reflect.Type, bool) {
	switch reflect.ValueOf(err).Kind() {
	case reflect.Ptr:
		// If the value of the interface is a pointer, we use the type
		// of the real value.
		return reflect.ValueOf(err).Elem().Type(), true
	case reflect.Struct:
		return reflect.TypeOf(err), true
	default:
		return nil, false
	}
}

// findErrExitCode looks up if there is a defined error code for the provided
// error type.
func findErrExitCode(err error) int {
	knownErr, found := findKnownErr(err)
	if !found {
		return DefaultErrorExitCode
	}
	errType, _ := findErrType(knownErr)
	if exitStatus, found := statusCodeForType[errType]; found {
		return exitStatus
	}
	return DefaultErrorExitCode
}
