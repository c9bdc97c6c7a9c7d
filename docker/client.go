// Package docker wraps the Docker API client with the constrained set of
// container operations the sprite provider drives: create/start/stop/
// remove, exec, one-shot stats, and file writes into a running container.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// ErrUninitialized is returned when a client method is invoked before the
// Docker API client has been constructed. This makes failure modes explicit.
var ErrUninitialized = errors.New("docker: client not initialized")

// Client wraps the Docker API client to provide a constrained set of helper
// methods for provisioning and driving sprite containers.
type Client struct {
	api client.APIClient
}

// New constructs a Docker client using environment variables and API version
// negotiation so it works across Docker Desktop and remote engines.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}

	return &Client{api: cli}, nil
}

// Close releases any underlying resources held by the Docker client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// CreateContainer creates a detached container running image with the given
// name, env vars, and a restart policy of unless-stopped, returning its id.
// It does not start the container.
func (c *Client) CreateContainer(ctx context.Context, name, image string, env []string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrUninitialized
	}

	resp, err := c.api.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image: image,
			Env:   env,
			Tty:   false,
		},
		HostConfig: &container.HostConfig{
			RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
			Privileged:    false,
		},
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("docker: create container %s: %w", name, err)
	}
	return resp.ID, nil
}

// StartContainer starts the specified container if it is not already running.
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if c == nil || c.api == nil {
		return ErrUninitialized
	}

	if err := c.api.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("docker: start container %s: %w", containerID, err)
	}

	return nil
}

// StopContainer attempts to gracefully stop the container within an optional
// timeout window.
func (c *Client) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	if c == nil || c.api == nil {
		return ErrUninitialized
	}

	var timeoutSeconds *int
	if timeout > 0 {
		secs := int(timeout.Round(time.Second) / time.Second)
		timeoutSeconds = &secs
	}

	if err := c.api.ContainerStop(ctx, containerID, client.ContainerStopOptions{Timeout: timeoutSeconds}); err != nil {
		return fmt.Errorf("docker: stop container %s: %w", containerID, err)
	}

	return nil
}

// RemoveContainer removes the specified container, optionally forcing removal.
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if c == nil || c.api == nil {
		return ErrUninitialized
	}
	if err := c.api.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{Force: force}); err != nil {
		return fmt.Errorf("docker: remove container %s: %w", containerID, err)
	}
	return nil
}

// ContainerExecRun runs a command in the container and returns its stdout.
func (c *Client) ContainerExecRun(ctx context.Context, containerID string, cmd []string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrUninitialized
	}

	execConfig := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}

	execIDResp, err := c.api.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return "", fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := c.api.ContainerExecAttach(ctx, execIDResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	// Read output - Docker multiplexes stdout/stderr with 8-byte headers
	var stdout bytes.Buffer
	outputDone := make(chan error, 1)

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := attachResp.Reader.Read(buf)
			if n > 0 {
				// Skip 8-byte header and extract stdout (type 1)
				if n > 8 {
					streamType := buf[0]
					if streamType == 1 { // stdout
						stdout.Write(buf[8:n])
					}
					// Ignore stderr (type 2) for now
				}
			}
			if err == io.EOF {
				outputDone <- nil
				return
			}
			if err != nil {
				outputDone <- err
				return
			}
		}
	}()

	err = c.api.ContainerExecStart(ctx, execIDResp.ID, container.ExecStartOptions{})
	if err != nil {
		attachResp.Close()
		return "", fmt.Errorf("start exec: %w", err)
	}

	if err := <-outputDone; err != nil && err != io.EOF {
		return "", fmt.Errorf("read output: %w", err)
	}

	inspect, err := c.api.ContainerExecInspect(ctx, execIDResp.ID)
	if err != nil {
		return "", fmt.Errorf("inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return stdout.String(), fmt.Errorf("command %q failed with exit code %d", strings.Join(cmd, " "), inspect.ExitCode)
	}

	return stdout.String(), nil
}

// ContainerInspect returns the container information including state and
// network settings.
func (c *Client) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if c == nil || c.api == nil {
		return container.InspectResponse{}, ErrUninitialized
	}

	return c.api.ContainerInspect(ctx, containerID)
}

// ResourceStats is the subset of a container's one-shot stats snapshot the
// control plane's enforcement monitor needs: cumulative CPU nanoseconds and
// the current memory working set, both straight off the cgroup accounting
// Docker already exposes.
type ResourceStats struct {
	CPUNanoseconds uint64
	MemoryBytes    uint64
}

// ContainerStats takes a single (non-streaming) stats snapshot of a
// container, decoded down to just the two counters the sprite provider's
// Metrics needs.
func (c *Client) ContainerStats(ctx context.Context, containerID string) (ResourceStats, error) {
	if c == nil || c.api == nil {
		return ResourceStats{}, ErrUninitialized
	}

	resp, err := c.api.ContainerStats(ctx, containerID, client.ContainerStatsOptions{Stream: false})
	if err != nil {
		return ResourceStats{}, fmt.Errorf("docker: stats %s: %w", containerID, err)
	}
	defer resp.Body.Close()

	var statsJSON struct {
		CPUStats struct {
			CPUUsage struct {
				TotalUsage uint64 `json:"total_usage"`
			} `json:"cpu_usage"`
		} `json:"cpu_stats"`
		MemoryStats struct {
			Usage uint64 `json:"usage"`
		} `json:"memory_stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statsJSON); err != nil {
		return ResourceStats{}, fmt.Errorf("docker: decode stats %s: %w", containerID, err)
	}

	return ResourceStats{
		CPUNanoseconds: statsJSON.CPUStats.CPUUsage.TotalUsage,
		MemoryBytes:    statsJSON.MemoryStats.Usage,
	}, nil
}

// ContainerCreateDirectory runs mkdir -p inside the container, optionally
// chmod-ing the leaf directory.
func (c *Client) ContainerCreateDirectory(ctx context.Context, containerID, path string, mode uint32) error {
	if c == nil || c.api == nil {
		return ErrUninitialized
	}
	if _, err := c.ContainerExecRun(ctx, containerID, []string{"mkdir", "-p", path}); err != nil {
		return err
	}
	if mode != 0 {
		chmod := fmt.Sprintf("%#o", mode)
		if _, err := c.ContainerExecRun(ctx, containerID, []string{"chmod", chmod, path}); err != nil {
			return err
		}
	}
	return nil
}

// ContainerWriteFile writes content to filePath inside the container via the
// Copy API. The parent directory must already exist.
func (c *Client) ContainerWriteFile(ctx context.Context, containerID, filePath string, content []byte, mode uint32) error {
	if c == nil || c.api == nil {
		return ErrUninitialized
	}
	if !strings.HasPrefix(filePath, "/") {
		filePath = "/" + filePath
	}
	destDir := filepath.Dir(filePath)
	if destDir == "." {
		destDir = "/"
	}
	var buf bytes.Buffer
	tarWriter := tar.NewWriter(&buf)
	fileMode := int64(0o644)
	if mode != 0 {
		fileMode = int64(mode)
	}
	if err := tarWriter.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     filepath.Base(filePath),
		Mode:     fileMode,
		Size:     int64(len(content)),
		ModTime:  time.Now(),
	}); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tarWriter.Write(content); err != nil {
		return fmt.Errorf("write tar content: %w", err)
	}
	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := c.api.CopyToContainer(ctx, containerID, destDir, &buf, client.CopyToContainerOptions{AllowOverwriteDirWithFile: true}); err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}
