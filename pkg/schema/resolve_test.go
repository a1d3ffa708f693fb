package schema

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

type fakeInferrer struct {
	calls   int
	gotCap  *int
	gotData string
	schema  *arrow.Schema
	err     error
}

func (f *fakeInferrer) InferSchema(_ context.Context, r io.Reader, maxRecords *int) (*arrow.Schema, error) {
	f.calls++
	f.gotCap = maxRecords
	b, _ := io.ReadAll(r)
	f.gotData = string(b)
	return f.schema, f.err
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestResolveSchemaFileBypassesInference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(eventsDoc), 0o600))

	inf := &fakeInferrer{}
	opened := false
	s, err := Resolve(context.Background(), Options{SchemaFile: path}, inf, func() (io.ReadCloser, error) {
		opened = true
		return nil, errors.New(errors.ErrorTypeIO, "should not be opened")
	})
	require.NoError(t, err)
	assert.Equal(t, 8, s.NumFields())
	assert.False(t, opened)
	assert.Zero(t, inf.calls)
}

func TestResolveInfers(t *testing.T) {
	want := Utf8Schema([]string{"a"})
	inf := &fakeInferrer{schema: want}
	rc := &trackingCloser{Reader: strings.NewReader("a\n1\n")}
	limit := 10

	s, err := Resolve(context.Background(), Options{MaxReadRecords: &limit}, inf, func() (io.ReadCloser, error) {
		return rc, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, s)
	assert.Equal(t, 1, inf.calls)
	assert.Equal(t, "a\n1\n", inf.gotData)
	require.NotNil(t, inf.gotCap)
	assert.Equal(t, 10, *inf.gotCap)
	assert.True(t, rc.closed, "the inference pass is closed")
}

func TestResolveErrors(t *testing.T) {
	open := func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("")), nil }

	// untyped inference failures are classified
	_, err := Resolve(context.Background(), Options{}, &fakeInferrer{err: io.ErrUnexpectedEOF}, open)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	// typed failures keep their type
	_, err = Resolve(context.Background(), Options{}, &fakeInferrer{err: errors.New(errors.ErrorTypeIO, "disk")}, open)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	_, err = Resolve(context.Background(), Options{}, &fakeInferrer{}, func() (io.ReadCloser, error) {
		return nil, errors.New(errors.ErrorTypeIO, "missing")
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	neg := -1
	_, err = Resolve(context.Background(), Options{MaxReadRecords: &neg}, &fakeInferrer{}, open)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Resolve(context.Background(), Options{SchemaFile: filepath.Join(t.TempDir(), "none.json")}, &fakeInferrer{}, open)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}
