package prompt

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Console asks questions on a terminal. Previews are written as PNG files
// into PreviewDir so they can be opened in any viewer.
type Console struct {
	In         io.Reader
	Out        io.Writer
	PreviewDir string

	lines    chan string
	previews int
}

func NewConsole(in io.Reader, out io.Writer, previewDir string) *Console {
	return &Console{In: in, Out: out, PreviewDir: previewDir}
}

func (c *Console) Show(ctx context.Context, d Dialog) (Response, error) {
	fmt.Fprintf(c.Out, "\n== %s ==\n", d.Title)

	if d.Preview != nil && c.PreviewDir != "" {
		path, err := c.writePreview(d)
		if err != nil {
			fmt.Fprintf(c.Out, "(preview unavailable: %v)\n", err)
		} else {
			fmt.Fprintf(c.Out, "Preview: %s\n", path)
		}
	}

	resp := Defaults(d, Confirmed)
	for _, f := range d.Fields {
		if f.Kind == FieldMessage {
			fmt.Fprintln(c.Out, f.Label)
			continue
		}
		for {
			fmt.Fprintf(c.Out, "%s [%s]: ", f.Label, defaultText(f))
			line, err := c.readLine(ctx)
			if err != nil {
				return Response{}, err
			}
			if line == "" {
				break
			}
			v, err := ParseValue(f, line)
			if err != nil {
				fmt.Fprintln(c.Out, err)
				continue
			}
			resp.Values[f.Key] = v
			break
		}
	}

	outcome, err := c.chooseOutcome(ctx, d)
	if err != nil {
		return Response{}, err
	}
	resp.Outcome = outcome
	if outcome == Declined {
		resp.Values = nil
	}
	return resp, nil
}

func (c *Console) chooseOutcome(ctx context.Context, d Dialog) (Outcome, error) {
	ok := d.OKLabel
	if ok == "" {
		ok = "OK"
	}
	options := []string{"[1] " + ok}
	if d.AltLabel != "" {
		options = append(options, "[2] "+d.AltLabel)
	}
	if d.CancelLabel != "" {
		options = append(options, "[3] "+d.CancelLabel)
	}
	if len(options) == 1 {
		return Confirmed, nil
	}

	for {
		fmt.Fprintf(c.Out, "%s [1]: ", strings.Join(options, "  "))
		line, err := c.readLine(ctx)
		if err != nil {
			return Confirmed, err
		}
		switch line {
		case "", "1":
			return Confirmed, nil
		case "2":
			if d.AltLabel != "" {
				return Alternate, nil
			}
		case "3":
			if d.CancelLabel != "" {
				return Declined, nil
			}
		}
		fmt.Fprintln(c.Out, "unknown choice")
	}
}

// readLine blocks until a line arrives or ctx ends. EOF counts as an empty
// answer so piped input falls through to defaults.
func (c *Console) readLine(ctx context.Context) (string, error) {
	if c.lines == nil {
		c.lines = make(chan string)
		go func(r io.Reader, out chan<- string) {
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				out <- scanner.Text()
			}
			close(out)
		}(c.In, c.lines)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", nil
		}
		return strings.TrimSpace(line), nil
	}
}

func (c *Console) writePreview(d Dialog) (string, error) {
	if err := os.MkdirAll(c.PreviewDir, 0o755); err != nil {
		return "", err
	}
	c.previews++
	path := filepath.Join(c.PreviewDir, fmt.Sprintf("%03d-%s.png", c.previews, d.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, d.Preview); err != nil {
		return "", err
	}
	return path, nil
}

func defaultText(f Field) string {
	switch f.Kind {
	case FieldCheckbox:
		if f.Bool {
			return "Y/n"
		}
		return "y/N"
	case FieldNumber:
		return strconv.FormatFloat(f.Number, 'f', f.Digits, 64)
	default:
		return f.Text
	}
}
