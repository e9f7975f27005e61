// Package hostbridge connects the host application's plugin to the
// dispatcher over a line-oriented stream.
//
// Each request is one line: a command followed by its arguments, either
// space separated (double quotes group words) or pipe separated:
//
//	:TRACK: Arm01 "Main Camera"
//	:TRACK:|Arm01|Main Camera
//
// Each request gets exactly one reply line:
//
//	["ok", ":TRACK:"]
//	["ok", ":TRACK:", "2"]
//	["error", ":TRACK:", "server is running"]
package hostbridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/uell/livelink/internal/dispatcher"
	"github.com/uell/livelink/internal/util"
)

// Dispatcher is the subset of *dispatcher.Dispatcher the bridge uses.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
	Commands() []string
}

// Bridge serves command lines against a dispatcher.
type Bridge struct {
	dispatcher Dispatcher
	version    string
}

func New(d Dispatcher, version string) *Bridge {
	return &Bridge{dispatcher: d, version: version}
}

// Serve handles lines from r until EOF or ctx is done.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	bw := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			reply, handled := b.Handle(line)
			if !handled {
				continue
			}
			if _, err := bw.WriteString(reply + "\n"); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
			if err := bw.Flush(); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

// Handle runs one request line and returns its reply. Blank lines and
// lines starting with # are ignored.
func (b *Bridge) Handle(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}

	fields, err := Split(line)
	if err != nil {
		return FormatResponse(line, nil, err), true
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ":TIMESTAMP:":
		return FormatResponse(cmd, strconv.FormatInt(time.Now().UTC().UnixNano(), 10), nil), true
	case ":VERSION:":
		return FormatResponse(cmd, b.version, nil), true
	case ":HELP:":
		return FormatResponse(cmd, strings.Join(b.dispatcher.Commands(), ","), nil), true
	}

	result, err := b.dispatcher.Dispatch(dispatcher.Event{
		Command:   cmd,
		Args:      args,
		Timestamp: time.Now(),
	})
	if errors.Is(err, dispatcher.ErrUnknownCommand) {
		err = errors.New("no handler registered")
	}
	return FormatResponse(cmd, result, err), true
}

// FormatResponse renders a dispatch result as a reply array.
func FormatResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s", "%s"]`, util.EscapeQuotes(command), util.EscapeQuotes(err.Error()))
	}
	if result == nil {
		return fmt.Sprintf(`["ok", "%s"]`, util.EscapeQuotes(command))
	}
	return fmt.Sprintf(`["ok", "%s", "%s"]`, util.EscapeQuotes(command), util.EscapeQuotes(fmt.Sprint(result)))
}

// Split breaks a request line into command and arguments.
func Split(line string) ([]string, error) {
	if strings.Contains(line, "|") {
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = util.Unquote(parts[i])
		}
		return parts, nil
	}

	var (
		fields  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case r == ' ' && !inQuote:
			if started {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
