package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Record kinds passed to the policy as input.kind
const (
	KindFlash    = "flash"
	KindLongTerm = "long_term"
)

const admitQuery = "data.memory.admit"

// printHook forwards Rego print() output to the context logger
type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Admission decides which new memory records are kept. A nil or empty
// Admission admits everything.
type Admission struct {
	query *rego.PreparedEvalQuery
}

// New loads all *.rego files in dir. An empty dir argument or a directory
// without policy files yields an Admission that admits every record.
func New(ctx context.Context, dir string) (*Admission, error) {
	if dir == "" {
		return &Admission{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return &Admission{}, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query(admitQuery))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query", goerr.V("query", admitQuery))
	}

	logging.From(ctx).Debug("admission policy loaded", "dir", dir, "files", len(files))
	return &Admission{query: &prepared}, nil
}

// Enabled reports whether any policy is loaded
func (a *Admission) Enabled() bool {
	return a != nil && a.query != nil
}

// Admit evaluates one record. An undefined result admits the record and
// only a boolean false rejects it.
func (a *Admission) Admit(ctx context.Context, kind string, record *model.MemoryRecord) (bool, error) {
	if !a.Enabled() || record == nil {
		return true, nil
	}

	topics := make([]any, 0, len(record.Topics))
	for _, t := range record.Topics {
		topics = append(topics, t)
	}
	input := map[string]any{
		"kind":   kind,
		"text":   record.Text,
		"topics": topics,
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate admission policy", goerr.V("kind", kind))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return true, nil
	}

	admit, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, goerr.New("admission policy must return boolean",
			goerr.V("value", rs[0].Expressions[0].Value))
	}
	return admit, nil
}

// Filter returns the admitted records in their original order
func (a *Admission) Filter(ctx context.Context, kind string, records []*model.MemoryRecord) ([]*model.MemoryRecord, error) {
	if !a.Enabled() {
		return records, nil
	}

	admitted := make([]*model.MemoryRecord, 0, len(records))
	for _, r := range records {
		ok, err := a.Admit(ctx, kind, r)
		if err != nil {
			return nil, err
		}
		if !ok {
			logging.From(ctx).Info("memory rejected by policy", "kind", kind, "text", r.Text)
			continue
		}
		admitted = append(admitted, r)
	}
	return admitted, nil
}
