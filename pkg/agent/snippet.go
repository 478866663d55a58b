package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tailot/taylored-orchestrator/pkg/events"
	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/metrics"
)

// snippetPattern extracts the first <taylored> block's number, optional
// compute attribute, and body. Only the first match's number is used to
// tag every event produced by one tayloredRun.
var snippetPattern = regexp.MustCompile(`<taylored\s+number=["'](\d+)["'](?:\s+compute=["']([^"']*)["'])?>([\s\S]*?)</taylored>`)

var commitAuthor = &object.Signature{
	Name:  "taylored-runner",
	Email: "runner@taylored.local",
	When:  time.Time{},
}

// executeSnippet implements the tayloredRun algorithm: extract the
// snippet id, materialize a throwaway git working tree containing the
// request body as runner.xml, commit it, and spawn the configured
// runner tool against it, streaming its stdout/stderr back tagged with
// the snippet id.
func (a *Agent) executeSnippet(ctx context.Context, broker *events.Broker, body string) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnippetRunDuration)

	if body == "" {
		metrics.SnippetRunsTotal.WithLabelValues("bad_input").Inc()
		publishRunError(broker, nil, "Invalid XML data: request body must be a non-empty string.")
		return
	}

	match := snippetPattern.FindStringSubmatch(body)
	if match == nil {
		metrics.SnippetRunsTotal.WithLabelValues("bad_input").Inc()
		publishRunError(broker, nil, "Could not extract snippet ID (number) from XML data.")
		return
	}

	id, err := strconv.Atoi(match[1])
	if err != nil {
		metrics.SnippetRunsTotal.WithLabelValues("bad_input").Inc()
		publishRunError(broker, nil, "Could not extract snippet ID (number) from XML data.")
		return
	}

	dir, err := os.MkdirTemp("", "taylored-run-")
	if err != nil {
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		publishRunError(broker, &id, fmt.Sprintf("Execution failed: %s", err))
		return
	}
	defer os.RemoveAll(dir)

	if err := initWorkingTree(dir, body); err != nil {
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		publishRunError(broker, &id, fmt.Sprintf("Execution failed: %s", err))
		return
	}

	if err := a.runTool(ctx, dir, id, broker); err != nil {
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		publishRunError(broker, &id, fmt.Sprintf("Execution failed: %s", err))
		return
	}

	metrics.SnippetRunsTotal.WithLabelValues("ok").Inc()
}

// initWorkingTree creates a fresh git repository at dir, writes body to
// runner.xml, and commits it on main under a fixed author identity.
func initWorkingTree(dir, body string) error {
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.ReferenceName("refs/heads/main"),
		},
	})
	if err != nil {
		return fmt.Errorf("init working tree: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "runner.xml"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("write runner.xml: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	if _, err := wt.Add("runner.xml"); err != nil {
		return fmt.Errorf("stage runner.xml: %w", err)
	}

	author := *commitAuthor
	author.When = time.Now()
	if _, err := wt.Commit("Add runner.xml", &git.CommitOptions{Author: &author}); err != nil {
		return fmt.Errorf("commit runner.xml: %w", err)
	}

	return nil
}

// runTool spawns the configured runner tool against the working tree
// and streams each output line back tagged with id. The child's exit
// code is observed but never reported; cleanup of the working tree is
// the caller's responsibility.
func (a *Agent) runTool(ctx context.Context, dir string, id int, broker *events.Broker) error {
	if len(a.cfg.RunnerTool) == 0 {
		return fmt.Errorf("no runner tool configured")
	}

	cmd := exec.CommandContext(ctx, a.cfg.RunnerTool[0], a.cfg.RunnerTool[1:]...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{}, 2)
	go streamLines(stdout, func(line string) {
		broker.Publish(&events.Event{Name: events.TayloredOutput, Payload: tayloredOutputPayload{ID: id, Output: line}})
	}, done)
	go streamLines(stderr, func(line string) {
		broker.Publish(&events.Event{Name: events.TayloredError, Payload: tayloredErrorPayload{ID: id, Error: line}})
	}, done)
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		log.WithSessionID(strconv.Itoa(id)).Warn("runner tool exited with a non-zero status")
	}

	return nil
}

func streamLines(r io.Reader, emit func(string), done chan<- struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	done <- struct{}{}
}
