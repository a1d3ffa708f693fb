package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/schema"
)

var (
	parquetMagic = []byte("PAR1")
	arrowMagic   = []byte("ARROW1")
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the schema and layout of a Parquet or Arrow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectFile(cmd.OutOrStdout(), args[0])
		},
	}
}

func inspectFile(w io.Writer, path string) error {
	fh, err := os.Open(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open file").WithDetail("path", path)
	}
	defer fh.Close()

	head := make([]byte, len(arrowMagic))
	n, err := io.ReadFull(fh, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read file").WithDetail("path", path)
	}
	head = head[:n]
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read file").WithDetail("path", path)
	}

	switch {
	case bytes.HasPrefix(head, parquetMagic):
		return inspectParquet(w, fh)
	case bytes.HasPrefix(head, arrowMagic):
		return inspectArrow(w, fh)
	default:
		return errors.New(errors.ErrorTypeConfig, "not a parquet or arrow file").WithDetail("path", path)
	}
}

func inspectParquet(w io.Writer, fh *os.File) error {
	rdr, err := file.NewParquetReader(fh)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to read parquet footer")
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to open parquet file")
	}
	sch, err := fr.Schema()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to read parquet schema")
	}
	if err := printSchema(w, sch); err != nil {
		return err
	}

	md := rdr.MetaData()
	fmt.Fprintf(w, "\nFormat:     parquet (%s)\n", md.Version())
	fmt.Fprintf(w, "Created by: %s\n", md.GetCreatedBy())
	fmt.Fprintf(w, "Rows:       %d\n", rdr.NumRows())
	fmt.Fprintf(w, "Row groups: %d\n\n", rdr.NumRowGroups())

	table := newTable(w, "Row group", "Rows", "Bytes", "Compression", "Encodings")
	for i := 0; i < rdr.NumRowGroups(); i++ {
		rg := md.RowGroup(i)
		codec, encodings := "-", "-"
		if rg.NumColumns() > 0 {
			col, err := rg.ColumnChunk(0)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeDecode, "failed to read column chunk metadata")
			}
			codec = col.Compression().String()
			names := make([]string, 0, len(col.Encodings()))
			for _, e := range col.Encodings() {
				names = append(names, e.String())
			}
			encodings = strings.Join(names, ",")
		}
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatInt(rg.NumRows(), 10),
			strconv.FormatInt(rg.TotalByteSize(), 10),
			codec,
			encodings,
		})
	}
	table.Render()
	return nil
}

func inspectArrow(w io.Writer, fh *os.File) error {
	r, err := ipc.NewFileReader(fh, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to open arrow file")
	}
	defer r.Close()

	if err := printSchema(w, r.Schema()); err != nil {
		return err
	}

	var rows int64
	table := newTable(w, "Batch", "Rows", "Columns")
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeDecode, "failed to read record batch").WithDetail("batch", i)
		}
		rows += rec.NumRows()
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatInt(rec.NumRows(), 10),
			strconv.FormatInt(rec.NumCols(), 10),
		})
	}

	fmt.Fprintf(w, "\nFormat:  arrow ipc (%s)\n", r.Version())
	fmt.Fprintf(w, "Rows:    %d\n", rows)
	fmt.Fprintf(w, "Batches: %d\n\n", r.NumRecords())
	table.Render()
	return nil
}

func printSchema(w io.Writer, sch *arrow.Schema) error {
	if err := schema.Write(w, sch); err != nil {
		return errors.WrapUntyped(err, errors.ErrorTypeIO, "failed to print schema")
	}
	if keys := schema.SortedMetadataKeys(sch); len(keys) > 0 {
		fmt.Fprintln(w)
		table := newTable(w, "Metadata key", "Value")
		md := sch.Metadata()
		for _, k := range keys {
			v, _ := md.GetValue(k)
			table.Append([]string{k, v})
		}
		table.Render()
	}
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
