package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

// NewClient creates a Docker API client for the given host URL. An empty
// host falls back to the environment (DOCKER_HOST etc.).
func NewClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	return client.NewClientWithOpts(opts...)
}

// Runner executes version-check commands inside throwaway containers.
type Runner struct {
	client  client.APIClient
	log     *logrus.Logger
	timeout time.Duration
}

// NewRunner wraps a Docker API client. Each query gets its own deadline of
// timeout (0 disables the deadline); pulling an image for the first time is
// the slow path, so the timeout must cover it.
func NewRunner(cli client.APIClient, log *logrus.Logger, timeout time.Duration) *Runner {
	return &Runner{client: cli, log: log, timeout: timeout}
}

// RunQuery runs command under /bin/sh inside a fresh container of the given
// image, waits for it to exit, and returns its trimmed stdout. The
// container is removed afterwards. Failures are returned as-is; the query
// has side effects inside the container, so no retries are attempted.
func (r *Runner) RunQuery(ctx context.Context, imageRef, command string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.pullImage(ctx, imageRef); err != nil {
		return "", fmt.Errorf("pull %s: %w", imageRef, err)
	}

	created, err := r.client.ContainerCreate(ctx, &container.Config{
		Image: imageRef,
		Cmd:   []string{"/bin/sh", "-c", command},
	}, nil, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	defer func() {
		err := r.client.ContainerRemove(context.WithoutCancel(ctx), created.ID,
			container.RemoveOptions{Force: true})
		if err != nil {
			r.log.WithError(err).Warnf("failed to remove container %s", created.ID)
		}
	}()

	waitCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNextExit)

	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	select {
	case res := <-waitCh:
		if res.StatusCode != 0 {
			_, stderr, _ := r.containerOutput(ctx, created.ID)
			return "", fmt.Errorf("version query exited with status %d: %s",
				res.StatusCode, strings.TrimSpace(stderr))
		}
	case err := <-errCh:
		return "", fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	stdout, _, err := r.containerOutput(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("container logs: %w", err)
	}
	return strings.TrimSpace(stdout), nil
}

// pullImage pulls imageRef, discarding the progress stream.
func (r *Runner) pullImage(ctx context.Context, imageRef string) error {
	r.log.Debugf("pulling image %s", imageRef)
	rc, err := r.client.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, rc); err != nil {
		_ = rc.Close()
		return err
	}
	return rc.Close()
}

// containerOutput collects the demuxed stdout and stderr of a container.
func (r *Runner) containerOutput(ctx context.Context, id string) (string, string, error) {
	logs, err := r.client.ContainerLogs(context.WithoutCancel(ctx), id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", err
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}
