package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	networktypes "github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"

	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/pkg/errs"
)

// Client wraps the Docker API client for containerised tool runs.
type Client struct {
	docker *dockerclient.Client
	log    *logger.Logger
}

// NewClient creates a Docker API client. An empty host uses the
// environment (DOCKER_HOST et al).
func NewClient(host string, log *logger.Logger) (*Client, error) {
	opts := []dockerclient.Opt{
		dockerclient.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, dockerclient.WithHost(host))
	} else {
		opts = append(opts, dockerclient.FromEnv)
	}

	dc, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrDockerConnect, "toolchain.docker")
	}
	return &Client{docker: dc, log: log}, nil
}

// Ping verifies Docker daemon connectivity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

// Close releases the Docker API client resources.
func (c *Client) Close() error {
	return c.docker.Close()
}

// EnsureImage pulls the image unless it is already present locally.
func (c *Client) EnsureImage(ctx context.Context, img string) error {
	_, _, err := c.docker.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}
	if !dockerclient.IsErrNotFound(err) {
		return errs.Wrap(err, errs.ErrDockerPull, "toolchain.image").WithResource(img)
	}
	return c.PullImage(ctx, img)
}

// PullImage pulls the specified image and streams progress to the logger.
func (c *Client) PullImage(ctx context.Context, img string) error {
	c.log.Info("toolchain.pull", "image", img)
	rc, err := c.docker.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return errs.Wrap(err, errs.ErrDockerPull, "toolchain.pull").WithResource(img)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var msg struct {
			Status   string `json:"status"`
			Progress string `json:"progress"`
			Error    string `json:"error"`
		}
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return errs.Wrap(err, errs.ErrDockerPull, "toolchain.pull").WithResource(img)
		}
		if msg.Error != "" {
			return errs.Newf(errs.ErrDockerPull, "toolchain.pull", "%s", msg.Error).WithResource(img)
		}
		if msg.Status != "" {
			c.log.Debug("pull", "status", msg.Status, "progress", msg.Progress)
		}
	}
	return nil
}

// ContainerRunner executes each invocation inside a one-shot container.
// Host directories in mounts are bound at identical container paths so
// the absolute paths in the invocation stay valid inside. The configured
// command replaces the invocation's tool path, since host tool locations
// mean nothing inside the image.
type ContainerRunner struct {
	client  *Client
	image   string
	command string
	mounts  []string
	log     *logger.Logger
}

// NewContainerRunner constructs a ContainerRunner.
func NewContainerRunner(client *Client, img, command string, mounts []string, log *logger.Logger) *ContainerRunner {
	return &ContainerRunner{client: client, image: img, command: command, mounts: mounts, log: log}
}

// Name identifies the runner in logs and build records.
func (r *ContainerRunner) Name() string { return "container" }

// Run creates a container for the invocation, waits for it to exit and
// copies its output. The container allocates a TTY, so stdout and stderr
// arrive as one merged stream on stdout.
func (r *ContainerRunner) Run(ctx context.Context, inv Invocation, stdout, _ io.Writer) (int, error) {
	if err := r.client.EnsureImage(ctx, r.image); err != nil {
		return -1, err
	}

	binds := make([]string, 0, len(r.mounts))
	for _, m := range r.mounts {
		binds = append(binds, m+":"+m)
	}

	containerCfg := &containertypes.Config{
		Image:      r.image,
		Cmd:        append([]string{r.command}, inv.Args...),
		WorkingDir: inv.Dir,
		Tty:        true,
		Labels:     map[string]string{"gantry.run": "build"},
	}
	hostCfg := &containertypes.HostConfig{
		Binds: binds,
	}
	netCfg := &networktypes.NetworkingConfig{}

	name := fmt.Sprintf("gantry-build-%d", time.Now().UnixNano())
	resp, err := r.client.docker.ContainerCreate(ctx, containerCfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return -1, errs.Wrap(err, errs.ErrDockerRun, "toolchain.container").WithResource(name)
	}
	defer func() {
		_ = r.client.docker.ContainerRemove(context.WithoutCancel(ctx), resp.ID, containertypes.RemoveOptions{Force: true})
	}()

	if err := r.client.docker.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		return -1, errs.Wrap(err, errs.ErrDockerRun, "toolchain.container").WithResource(resp.ID[:12])
	}
	r.log.Debug("toolchain.exec", "runner", r.Name(), "image", r.image, "container", resp.ID[:12], "args", inv.Args)

	statusCh, errCh := r.client.docker.ContainerWait(ctx, resp.ID, containertypes.WaitConditionNotRunning)
	var exitCode int
	select {
	case <-ctx.Done():
		return -1, errs.Wrap(ctx.Err(), errs.ErrDockerRun, "toolchain.container").WithResource(resp.ID[:12])
	case err := <-errCh:
		return -1, errs.Wrap(err, errs.ErrDockerRun, "toolchain.container").WithResource(resp.ID[:12])
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	rc, err := r.client.docker.ContainerLogs(context.WithoutCancel(ctx), resp.ID, containertypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return exitCode, nil
	}
	defer rc.Close()
	_, _ = io.Copy(stdout, rc)

	return exitCode, nil
}
