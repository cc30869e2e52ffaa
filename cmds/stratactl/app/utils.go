package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/stratadb/strata/pkg/api"
	"github.com/stratadb/strata/pkg/utils"
)

// ResponseData yields the payload of a successful response.
// Error responses are converted into errors using the error
// message provided by the server.
func ResponseData(r *http.Response) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if r.StatusCode == http.StatusOK || r.StatusCode == http.StatusCreated {
		return data, nil
	}

	var msg api.Error
	if json.Unmarshal(data, &msg) != nil || msg.Error == "" {
		return nil, fmt.Errorf("request failed with status %s", r.Status)
	}
	return nil, fmt.Errorf("%s", msg.Error)
}

func getData(opts *Options, path string) ([]byte, error) {
	resp, err := http.Get(opts.GetURL() + path)
	if err != nil {
		return nil, err
	}
	return ResponseData(resp)
}

func getJSON[T any](opts *Options, path string, into *T) error {
	data, err := getData(opts, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, into)
}

func postJSON[T any](opts *Options, path string, body any, into *T) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(opts.GetURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	data, err = ResponseData(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, into)
}

// PrintFormatted renders data in the requested output format
// (json or yaml).
func PrintFormatted(w io.Writer, format string, data any) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "json":
		out, err := json.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", string(out))
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s", string(out))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

// PrintTable renders rows as a plain text table with the column
// widths adjusted to the content.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	max := make([]int, len(columns))
	for i, s := range columns {
		max[i] = len(s)
	}
	for _, cols := range rows {
		for i, s := range cols {
			if max[i] < len(s) {
				max[i] = len(s)
			}
		}
	}
	format := formatString(max)
	printLine(w, columns, format)
	for _, cols := range rows {
		printLine(w, cols, format)
	}
}

func formatString(max []int) string {
	msg := ""
	for _, l := range max {
		msg += fmt.Sprintf("%%-%ds ", l)
	}
	return msg[:len(msg)-1]
}

func printLine(w io.Writer, cols []string, format string) {
	line := fmt.Sprintf(format, utils.TransformSlice(cols, func(s string) any { return s })...)
	fmt.Fprintf(w, "%s\n", strings.TrimRight(line, " "))
}
