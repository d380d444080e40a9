// Package testing groups test helpers for go-fetchkit users and its own tests.
//
// The mocks subpackage provides testify-based doubles for the collaborator
// interfaces (httpclient.Transport). The fixtures subpackage provides a
// recording logger, a manual clock for retry delays and helpers that collect
// OpenTelemetry metrics from an in-memory reader.
//
//	import (
//		"github.com/gaborage/go-fetchkit/testing/fixtures"
//		"github.com/gaborage/go-fetchkit/testing/mocks"
//	)
package testing
