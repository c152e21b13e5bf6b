package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/distribution/reference"

	"dockyard/internal/docker"
	"dockyard/internal/scheduler"
	"dockyard/internal/store"
	"dockyard/internal/types"
	"dockyard/pkg/logging"
)

// ImagePuller opens an image pull progress stream.
type ImagePuller interface {
	PullImage(ctx context.Context, imageName string) (io.ReadCloser, error)
}

// Puller runs image pulls in the background. Closing the pull dialog does not
// stop a pull; it keeps running and still refreshes the image list when done.
type Puller struct {
	ctx     context.Context
	gate    *scheduler.Gate
	api     ImagePuller
	store   *store.Store
	refresh scheduler.Refresher

	wg sync.WaitGroup
}

// NewPuller creates a puller whose pulls are cancelled when ctx is.
func NewPuller(ctx context.Context, gate *scheduler.Gate, api ImagePuller, st *store.Store, refresh scheduler.Refresher) *Puller {
	return &Puller{ctx: ctx, gate: gate, api: api, store: st, refresh: refresh}
}

// NormalizeImageName resolves a user-typed reference to its familiar tagged
// form, so "nginx" and "nginx:latest" name the same pull.
func NormalizeImageName(name string) (string, error) {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", name, err)
	}
	return reference.FamiliarString(reference.TagNameOnly(named)), nil
}

// Start begins pulling name and returns the normalized name. It fails with
// store.ErrPullInProgress when that image is already being pulled.
func (p *Puller) Start(name string) (string, error) {
	ref, err := NormalizeImageName(name)
	if err != nil {
		return "", err
	}
	if err := p.store.BeginPull(ref); err != nil {
		return ref, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ref)
	}()
	return ref, nil
}

// Wait blocks until every pull started so far has finished.
func (p *Puller) Wait() {
	p.wg.Wait()
}

func (p *Puller) run(ref string) {
	ctx, cancel := context.WithTimeout(p.ctx, docker.TimeoutLong)
	defer cancel()

	logging.Info("pull", "pulling %s", ref)

	var body io.ReadCloser
	err := p.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = p.api.PullImage(ctx, ref)
		return err
	})
	if err == nil {
		err = docker.DecodePullEvents(body, func(ev types.LayerEvent) {
			p.store.AppendPullEvent(ref, ev)
		})
		_ = body.Close()
	}

	p.store.FinishPull(ref, err)

	if err != nil {
		logging.Error("pull", err, "pull of %s failed", ref)
		p.store.PushNotice(fmt.Sprintf("Pull of %s failed: %v", ref, err), true)
	} else {
		logging.Info("pull", "pulled %s", ref)
		p.store.PushNotice(fmt.Sprintf("Pulled %s", ref), false)
	}

	p.refresh.RefreshImages()
}
