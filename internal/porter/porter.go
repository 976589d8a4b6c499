// Package porter transfers files from the local buffer to the remote
// endpoint's buffer, optionally staging them first so the move looks atomic
// from the endpoint's point of view. It is the Go rendering of remote.py's
// Porter.
package porter

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
	"github.com/artemis/handoffd/internal/shell"
	"go.uber.org/zap"
)

// Config describes one endpoint: who to reach, where its buffer (and
// optional staging area) live, and the command templates used to reach it.
// Commands must provide at least "remote" (an arbitrary command run on the
// endpoint) and "transfer" (the remote-copy invocation).
type Config struct {
	User      string
	Host      string
	Buffer    string
	Staging   string // optional; empty means transfer directly to Buffer
	Commands  map[string]string
	ChunkSize int           // files grabbed per iteration of Run's outer loop, default 1
	Timeout   time.Duration // 0 means no timeout
}

var keywordReplacer = regexp.MustCompile(`\{(?:batch|file)\}`)

// allowedPlaceholders are the placeholder names every endpoint template may
// use beyond the configuration's own keys, mirroring remote.py's module
// level `keywords` set.
var allowedPlaceholders = []string{"batch", "command", "dest", "file", "source"}

// Porter transfers files to one endpoint. Its zero value is not usable; use
// New.
type Porter struct {
	remoteTpl   *shell.Template
	transferTpl *shell.Template
	params      map[string]string
	batchMode   bool
	buffer      string
	staging     string
	chunkSize   int
	timeout     time.Duration
	logger      *zap.Logger
}

// New validates cfg and builds a Porter. It fails if user/host/buffer are
// missing, the "remote"/"transfer" command templates are absent, or either
// template references an undeclared placeholder.
func New(cfg Config, logger *zap.Logger) (*Porter, error) {
	if cfg.User == "" || cfg.Host == "" || cfg.Buffer == "" {
		return nil, fmt.Errorf("porter: user, host and buffer must all be specified")
	}
	remoteRaw, ok := cfg.Commands["remote"]
	if !ok {
		return nil, fmt.Errorf(`porter: command "remote" not provided`)
	}
	if !strings.Contains(remoteRaw, "{command}") {
		return nil, fmt.Errorf(`porter: "remote" command must contain {command}`)
	}
	transferRaw, ok := cfg.Commands["transfer"]
	if !ok {
		return nil, fmt.Errorf(`porter: command "transfer" not provided`)
	}
	hasBatch := strings.Contains(transferRaw, "{batch}")
	hasFile := strings.Contains(transferRaw, "{file}")
	if hasBatch == hasFile {
		return nil, fmt.Errorf(`porter: "transfer" command must contain exactly one of {batch} or {file}`)
	}
	if !strings.Contains(transferRaw, "{dest}") {
		return nil, fmt.Errorf(`porter: "transfer" command must contain {dest}`)
	}

	params := map[string]string{"user": cfg.User, "host": cfg.Host, "buffer": cfg.Buffer}
	if cfg.Staging != "" {
		params["staging"] = cfg.Staging
	}

	allowed := map[string]bool{}
	for _, name := range allowedPlaceholders {
		allowed[name] = true
	}
	for name := range params {
		allowed[name] = true
	}

	remoteTpl, err := shell.NewTemplate(remoteRaw, allowed)
	if err != nil {
		return nil, err
	}

	// A transfer command sourced from "batch" moves every file in a group
	// together; one sourced from "file" moves files one at a time. Either
	// way the placeholder is renamed to "source" before parsing so Run can
	// fill it uniformly regardless of which keyword the operator wrote.
	batchMode := hasBatch
	renamed := keywordReplacer.ReplaceAllString(transferRaw, "{source}")
	transferTpl, err := shell.NewTemplate(renamed, allowed)
	if err != nil {
		return nil, err
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Porter{
		remoteTpl:   remoteTpl,
		transferTpl: transferTpl,
		params:      params,
		batchMode:   batchMode,
		buffer:      cfg.Buffer,
		staging:     cfg.Staging,
		chunkSize:   chunkSize,
		timeout:     cfg.Timeout,
		logger:      logger,
	}, nil
}

// Run drains in in chunks, groups files sharing a (head, tail) location, and
// transfers each group through the pre-stage / transfer / promote protocol,
// emitting one model.TransferRecord per batch attempted onto out. Multiple
// Porter.Run goroutines may call this concurrently against the same queues
// (spec.md §5's worker pool); each call only ever touches the chunk it
// drains.
func (p *Porter) Run(ctx context.Context, in *queue.Queue[model.FileItem], out *queue.Queue[model.TransferRecord]) error {
	stage := p.staging
	if stage == "" {
		stage = p.buffer
	}

	for !in.Empty() {
		files := in.Drain(p.chunkSize)
		if len(files) == 0 {
			continue
		}

		type location struct{ head, tail string }
		groups := map[location][]model.FileItem{}
		var order []location
		for _, item := range files {
			key := location{item.Head, item.Tail}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], item)
		}

		for _, loc := range order {
			p.transferGroup(ctx, loc.head, loc.tail, groups[loc], stage, out)
		}
	}
	return nil
}

func (p *Porter) transferGroup(ctx context.Context, head, tail string, items []model.FileItem, stage string, out *queue.Queue[model.TransferRecord]) {
	batchSize := 1
	if p.batchMode {
		batchSize = len(items)
	}

	var batches [][]model.FileItem
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}

	records := make([]*model.TransferRecord, len(batches))
	for i, batch := range batches {
		var size int64
		refs := make([]model.FileRef, len(batch))
		for j, item := range batch {
			size += item.Size
			refs[j] = model.FileRef{Head: head, Tail: tail, Name: item.Name}
		}
		records[i] = &model.TransferRecord{Files: refs, Size: size}
	}

	// 1. pre-transfer: ensure the staging (or direct) destination exists.
	dest := path.Join(stage, tail)
	preCmd := p.remoteTpl.Render(withExtra(p.params, "command", "mkdir -p "+dest))
	start := time.Now()
	res, err := shell.Run(ctx, preCmd, p.timeout)
	if err != nil {
		p.logger.Error("running pre-transfer command failed", zap.Error(err))
		for _, rec := range records {
			rec.Status = model.StatusGenericFailure
			rec.Error = err.Error()
		}
		flush(out, records)
		return
	}
	for _, rec := range records {
		stampStart(&rec.PreStart, start)
		stampDur(&rec.PreDur, res.Duration)
		rec.Status = res.Status
		rec.Error = res.Stderr
	}
	if res.Status != model.StatusOK {
		p.logger.Warn("pre-transfer command failed", zap.String("cmd", preCmd), zap.String("stderr", res.Stderr))
		flush(out, records)
		return
	}

	// 2. transfer.
	var relocatedBatches [][]model.FileItem
	var relocatedRecords []*model.TransferRecord
	for i, batch := range batches {
		rec := records[i]
		src := joinPaths(head, tail, batch)
		cmd := p.transferTpl.Render(withExtra(withExtra(p.params, "source", src), "dest", dest))
		start := time.Now()
		res, err := shell.Run(ctx, cmd, p.timeout)
		if err != nil {
			p.logger.Error("running transfer command failed", zap.Error(err))
			rec.Status = model.StatusGenericFailure
			rec.Error = err.Error()
			flush(out, []*model.TransferRecord{rec})
			continue
		}
		stampStart(&rec.TransStart, start)
		stampDur(&rec.TransDur, res.Duration)
		rec.Status = res.Status
		rec.Error = res.Stderr

		if res.Status != model.StatusOK {
			p.logger.Warn("transfer command failed", zap.String("cmd", cmd), zap.String("stderr", res.Stderr))
			flush(out, []*model.TransferRecord{rec})
			continue
		}

		rate := float64(rec.Size) / res.Duration.Seconds() / (1024 * 1024)
		rec.Rate = &rate
		relocatedBatches = append(relocatedBatches, batch)
		relocatedRecords = append(relocatedRecords, rec)
	}
	if len(relocatedBatches) == 0 {
		return
	}

	// Files landed directly in the endpoint's buffer; nothing to promote.
	if stage == p.buffer {
		flush(out, relocatedRecords)
		return
	}

	// 3. post-transfer: promote from staging into the endpoint's buffer.
	finalDest := path.Join(p.buffer, tail)
	postCmd := p.remoteTpl.Render(withExtra(p.params, "command", "mkdir -p "+finalDest))
	postStart := time.Now()
	postRes, err := shell.Run(ctx, postCmd, p.timeout)
	if err != nil {
		p.logger.Error("running post-transfer command failed", zap.Error(err))
		for _, rec := range relocatedRecords {
			rec.Status = model.StatusGenericFailure
			rec.Error = err.Error()
		}
		flush(out, relocatedRecords)
		return
	}
	for _, rec := range relocatedRecords {
		stampStart(&rec.PostStart, postStart)
		stampDur(&rec.PostDur, postRes.Duration)
		rec.Status = postRes.Status
		rec.Error = postRes.Stderr
	}
	if postRes.Status != model.StatusOK {
		p.logger.Warn("post-transfer command failed", zap.String("cmd", postCmd), zap.String("stderr", postRes.Stderr))
		flush(out, relocatedRecords)
		return
	}

	var completed []*model.TransferRecord
	for i, batch := range relocatedBatches {
		rec := relocatedRecords[i]
		src := joinPaths(stage, tail, batch)
		// Promotion is an explicit move executed through the "remote"
		// template rather than a dedicated move template: the same command
		// family used for "mkdir -p" above, parameterized with `mv`.
		cmd := p.remoteTpl.Render(withExtra(p.params, "command", "mv "+src+" "+finalDest))
		start := time.Now()
		res, err := shell.Run(ctx, cmd, p.timeout)
		if err != nil {
			p.logger.Error("running promote command failed", zap.Error(err))
			rec.Status = model.StatusGenericFailure
			rec.Error = err.Error()
			flush(out, []*model.TransferRecord{rec})
			continue
		}
		stampStart(&rec.PostStart, start)
		total := postRes.Duration + res.Duration
		stampDur(&rec.PostDur, total)
		rec.Status = res.Status
		rec.Error = res.Stderr

		if res.Status != model.StatusOK {
			p.logger.Warn("promote command failed", zap.String("cmd", cmd), zap.String("stderr", res.Stderr))
			flush(out, []*model.TransferRecord{rec})
			continue
		}
		completed = append(completed, rec)
	}
	flush(out, completed)
}

func flush(out *queue.Queue[model.TransferRecord], recs []*model.TransferRecord) {
	for _, r := range recs {
		out.Put(*r)
	}
}

func joinPaths(head, tail string, items []model.FileItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = path.Join(head, tail, item.Name)
	}
	return strings.Join(parts, " ")
}

func withExtra(base map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}

func stampStart(field **time.Time, t time.Time) {
	v := t
	*field = &v
}

func stampDur(field **time.Duration, d time.Duration) {
	v := d
	*field = &v
}
