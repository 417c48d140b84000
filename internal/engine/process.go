package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
)

// ProcessEngine drives one out-of-process engine binary per call,
// writing a single canonical JSON request to its stdin and reading a
// single canonical JSON response from its stdout — the simplest
// instance of the bilateral request/response channel.
type ProcessEngine struct {
	Name    string
	Command func(ctx context.Context) *exec.Cmd
}

// NewProcessEngine constructs a ProcessEngine. command builds a fresh
// *exec.Cmd for each invocation (stdin/stdout are wired by the caller).
func NewProcessEngine(name string, command func(ctx context.Context) *exec.Cmd) *ProcessEngine {
	return &ProcessEngine{Name: name, Command: command}
}

// Ingest implements Engine.
func (p *ProcessEngine) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	var resp IngestResponse
	if err := p.call(ctx, req, &resp); err != nil {
		return IngestResponse{}, err
	}

	return resp, nil
}

// Transform implements Engine.
func (p *ProcessEngine) Transform(ctx context.Context, req ExecuteQueryRequest) (ExecuteQueryResponse, error) {
	var resp ExecuteQueryResponse
	if err := p.call(ctx, req, &resp); err != nil {
		return ExecuteQueryResponse{}, err
	}

	return resp, nil
}

func (p *ProcessEngine) call(ctx context.Context, req, resp any) error {
	reqBytes, err := Marshal(req)
	if err != nil {
		return domainerrors.NewEngineError(domainerrors.EngineContractError, p.Name, err)
	}

	cmd := p.Command(ctx)
	cmd.Stdin = bytes.NewReader(reqBytes)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return domainerrors.NewEngineError(domainerrors.EngineProcessError, p.Name,
				fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), stderr.String()))
		}

		return domainerrors.NewEngineError(domainerrors.EngineIoError, p.Name, err)
	}

	if err := DecodeResponse(&stdout, resp); err != nil {
		return domainerrors.NewEngineError(domainerrors.EngineContractError, p.Name, err)
	}

	return nil
}
