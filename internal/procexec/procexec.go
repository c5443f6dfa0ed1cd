// Package procexec runs an external command as an itsdb.Processor.
package procexec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/andreyvit/itsdb"
)

const maxStderr = 512

// CommandProcessor starts Path with Args once per item, writes the datum
// followed by a newline to its stdin and turns every non-empty stdout line
// into one result stored under ResultField.
//
// The item's key values are passed as ITSDB_<KEY> environment variables,
// e.g. ITSDB_I_ID.
type CommandProcessor struct {
	Path string
	Args []string
	// TaskName defaults to "parse".
	TaskName string
	// ResultField defaults to "mrs".
	ResultField string
	Dir         string
	Logger      *zap.Logger
}

func (c *CommandProcessor) Task() string {
	if c.TaskName == "" {
		return "parse"
	}
	return c.TaskName
}

func (c *CommandProcessor) ProcessItem(ctx context.Context, datum string, keys map[string]string) (*itsdb.Response, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), keyEnv(keys)...)
	cmd.Stdin = strings.NewReader(datum + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[len(msg)-maxStderr:]
		}
		return nil, fmt.Errorf("%s failed: %w (stderr: %q)", c.Path, err, msg)
	}
	if stderr.Len() > 0 && c.Logger != nil {
		c.Logger.Debug("processor stderr", zap.String("cmd", c.Path), zap.String("stderr", stderr.String()))
	}

	field := c.ResultField
	if field == "" {
		field = "mrs"
	}
	resp := &itsdb.Response{Fields: make(map[string]string)}
	sc := bufio.NewScanner(&stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		resp.Results = append(resp.Results, map[string]string{field: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: reading output: %w", c.Path, err)
	}
	return resp, nil
}

func keyEnv(keys map[string]string) []string {
	env := make([]string, 0, len(keys))
	for k, v := range keys {
		name := "ITSDB_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		env = append(env, name+"="+v)
	}
	sort.Strings(env)
	return env
}
