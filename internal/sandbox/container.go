package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
	"github.com/judgyse/judgyse-go/internal/memsize"
)

// Container runs the command inside a throwaway Docker container: no
// network, a bind-mounted working directory, and a memory cap enforced by
// the kernel cgroup rather than ulimit. Selected when RUN_IN_DOCKER=1
// (spec.md §6).
type Container struct {
	Client *client.Client
}

// NewContainer wraps an already-constructed docker client.
func NewContainer(cli *client.Client) Container {
	return Container{Client: cli}
}

// Run creates, starts, waits on and removes one container per call. A
// cancelled ctx stops the container and reports TimeLimitExceeded; an
// OOM-killed exit is reported via RunResult.OOMKilled for the pipeline to
// classify.
func (c Container) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	containerConfig := &container.Config{
		Image:        spec.Image,
		Cmd:          []string{"/bin/sh", "-c", spec.Command},
		WorkingDir:   "/execution",
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	}

	mounts := toDockerMounts(spec.Mounts)
	if spec.WorkDir != "" {
		mounts = append([]mount.Mount{{Type: mount.TypeBind, Source: spec.WorkDir, Target: "/execution"}}, mounts...)
	}

	hostConfig := &container.HostConfig{
		Mounts:      mounts,
		SecurityOpt: []string{"no-new-privileges"},
	}
	if spec.NetworkDisabled {
		hostConfig.NetworkMode = "none"
	}
	if spec.MemoryLimit != "" {
		limitBytes, err := memsize.Parse(spec.MemoryLimit)
		if err != nil {
			return RunResult{}, judgeerr.SystemError{Detail: err.Error()}
		}
		hostConfig.Resources = container.Resources{
			Memory:     limitBytes,
			MemorySwap: limitBytes,
		}
	}

	resp, err := c.Client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return RunResult{}, judgeerr.SystemError{Detail: fmt.Sprintf("container create: %v", err)}
	}
	id := resp.ID
	defer c.remove(id)

	attached, err := c.Client.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true, Stdout: true, Stderr: true,
	})
	if err != nil {
		return RunResult{}, judgeerr.SystemError{Detail: fmt.Sprintf("container attach: %v", err)}
	}
	defer attached.Close()

	if err := c.Client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return RunResult{}, judgeerr.SystemError{Detail: fmt.Sprintf("container start: %v", err)}
	}

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader)
		copyDone <- err
	}()

	started := time.Now()
	statusCh, errCh := c.Client.ContainerWait(ctx, id, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		stopTimeout := 1
		_ = c.Client.ContainerStop(context.Background(), id, container.StopOptions{Timeout: &stopTimeout})
		return RunResult{Output: combinedOutput(&stdout, &stderr), WallTime: time.Since(started)},
			judgeerr.TimeLimitExceeded{Detail: "wall clock deadline exceeded"}

	case err := <-errCh:
		return RunResult{}, judgeerr.SystemError{Detail: fmt.Sprintf("container wait: %v", err)}

	case status := <-statusCh:
		waitCopy(copyDone)
		elapsed := time.Since(started)
		oomKilled := c.inspectOOM(id)
		return RunResult{
			Output:    combinedOutput(&stdout, &stderr),
			ExitCode:  int(status.StatusCode),
			OOMKilled: oomKilled,
			WallTime:  elapsed,
		}, nil
	}

	stopTimeout := 1
	_ = c.Client.ContainerStop(context.Background(), id, container.StopOptions{Timeout: &stopTimeout})
	return RunResult{Output: combinedOutput(&stdout, &stderr), WallTime: time.Since(started)},
		judgeerr.TimeLimitExceeded{Detail: "wall clock deadline exceeded"}
}

func (c Container) inspectOOM(id string) bool {
	info, err := c.Client.ContainerInspect(context.Background(), id)
	if err != nil {
		return false
	}
	return info.State != nil && info.State.OOMKilled
}

func (c Container) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.Client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

func toDockerMounts(mounts []Mount) []mount.Mount {
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}

func combinedOutput(stdout, stderr *bytes.Buffer) string {
	if stderr.Len() == 0 {
		return stdout.String()
	}
	var b strings.Builder
	b.WriteString(stdout.String())
	b.WriteString(stderr.String())
	return b.String()
}

func waitCopy(done <-chan error) {
	select {
	case err := <-done:
		_ = err // EOF once the container's streams close; nothing actionable.
	case <-time.After(2 * time.Second):
	}
}
