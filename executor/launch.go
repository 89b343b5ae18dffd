package executor

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
	"github.com/hectorj2f/mesos-group-executor/sandbox"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/sync/errgroup"
)

const containerIPEnvVar = "MESOS_CONTAINER_IP"

// onLaunchGroup implements the Launch Orchestrator, §4.D. The launch is
// atomic at task-group granularity: any partial failure triggers
// shutdown, never a partially-running group.
func (e *Executor) onLaunchGroup(ctx context.Context, group api.TaskGroupInfo) { // nolint: gocyclo
	ctx, span := trace.StartSpan(ctx, "onLaunchGroup")
	span.AddAttributes(trace.Int64Attribute("taskCount", int64(len(group.Tasks))))

	log := logger.G(ctx)

	if e.state != subscribed {
		log.Error("Received LAUNCH_GROUP while not SUBSCRIBED; shutting down")
		e.shutdown(ctx)
		span.End()
		return
	}
	if e.launched {
		log.Error("Received a second LAUNCH_GROUP; this is illegal, shutting down")
		e.shutdown(ctx)
		span.End()
		return
	}
	if len(e.executorContainerID.Value) == 0 {
		log.Error("LAUNCH_GROUP received before executorContainerId is known; shutting down")
		e.shutdown(ctx)
		span.End()
		return
	}
	e.launched = true

	epoch := e.connectionID
	conn := e.client.NewConnection()

	ids := make([]api.ContainerID, len(group.Tasks))
	for i := range group.Tasks {
		ids[i] = api.ContainerID{Value: uuid.New().String(), Parent: &e.executorContainerID}
	}

	// The launch itself is entirely network-bound (LAUNCH_NESTED_CONTAINER
	// per task, pipelined over one connection); it runs off the actor
	// goroutine and reports back through the mailbox, per §5.
	go func() {
		defer conn.Close() // nolint: errcheck

		containerIP, err := containerIP()
		if err == nil {
			g, gctx := errgroup.WithContext(ctx)
			for i, t := range group.Tasks {
				i, t := i, t
				req := buildLaunchRequest(ids[i], t, containerIP)
				g.Go(func() error {
					return conn.LaunchNestedContainer(gctx, req)
				})
			}
			err = g.Wait()
		}

		e.post(func() {
			defer span.End()
			if e.connectionID != epoch {
				return
			}
			if err != nil || e.state != subscribed || e.shuttingDown {
				if err != nil {
					log.WithError(err).Error("LAUNCH_NESTED_CONTAINER failed for one or more tasks in the group; shutting down")
				} else {
					log.Error("Lost subscription or began shutdown during LAUNCH_NESTED_CONTAINER; shutting down")
				}
				e.metrics.Counter("executor.launch.failed", 1, nil)
				e.shutdown(ctx)
				return
			}
			e.finishLaunch(ctx, group, ids)
		})
	}()
}

// finishLaunch implements §4.D steps 6-9: insert Container records,
// attach checkers, create sandbox symlinks, forward TASK_RUNNING for
// every task, then start waiting on every child.
func (e *Executor) finishLaunch(ctx context.Context, group api.TaskGroupInfo, ids []api.ContainerID) {
	log := logger.G(ctx)
	epoch := e.connectionID

	for i, t := range group.Tasks {
		c := &Container{
			TaskID:      t.TaskID,
			ContainerID: ids[i],
			TaskInfo:    t,
			TaskGroup:   group,
		}

		if t.Check != nil {
			checker, err := e.newChecker(t.TaskID, *t.Check, e.taskCheckUpdated)
			if err != nil {
				log.WithField("taskID", t.TaskID).WithError(err).Error("Failed to construct checker; shutting down")
				e.shutdown(ctx)
				return
			}
			c.Checker = checker
		}
		if t.HealthCheck != nil {
			hc, err := e.newHealthChecker(t.TaskID, *t.HealthCheck, e.taskHealthUpdated)
			if err != nil {
				log.WithField("taskID", t.TaskID).WithError(err).Error("Failed to construct health checker; shutting down")
				e.shutdown(ctx)
				return
			}
			c.HealthChecker = hc
		}

		if err := sandbox.LinkTask(e.cfg.SandboxDirectory, t.TaskID, c.ContainerID.Value); err != nil {
			log.WithField("taskID", t.TaskID).WithError(err).Error("Failed to create task sandbox symlink; aborting")
			e.shutdown(ctx)
			return
		}

		e.containers.put(c)
	}

	for _, t := range group.Tasks {
		c, _ := e.containers.get(t.TaskID)
		e.forwardStatus(ctx, c, api.TaskRunning, "", "")
	}

	for _, t := range group.Tasks {
		c, _ := e.containers.get(t.TaskID)
		e.startWait(ctx, epoch, c)
	}
}

// buildLaunchRequest implements §4.D step 3: copy command/container when
// present, share any disk-volume-backed container paths in as
// SANDBOX_PATH/PARENT volumes, default to container type MESOS when the
// task had none, and append MESOS_CONTAINER_IP to the environment.
func buildLaunchRequest(id api.ContainerID, t api.TaskInfo, containerIP string) api.LaunchNestedContainerRequest {
	req := api.LaunchNestedContainerRequest{ContainerID: id}

	if t.Command != nil {
		cmd := *t.Command
		env := make(map[string]string, len(cmd.Environment)+1)
		for k, v := range cmd.Environment {
			env[k] = v
		}
		env[containerIPEnvVar] = containerIP
		cmd.Environment = env
		req.Command = &cmd
	} else {
		req.Command = &api.CommandInfo{Environment: map[string]string{containerIPEnvVar: containerIP}}
	}

	var container api.ContainerInfo
	if t.Container != nil {
		container = *t.Container
	} else {
		container.Type = "MESOS"
	}

	for _, r := range t.Resources {
		if r.Disk == nil || r.Disk.Volume == nil {
			continue
		}
		container.Volumes = append(container.Volumes, api.Volume{
			ContainerPath: r.Disk.Volume.ContainerPath,
			Mode:          r.Disk.Volume.Mode,
			Source: &api.VolumeSource{
				Type:        "SANDBOX_PATH",
				SandboxPath: &api.SandboxPathSource{Type: "PARENT", Path: r.Disk.Volume.ContainerPath},
			},
		})
	}
	req.Container = &container

	return req
}

// containerIP derives the executor's own network identity, per §4.D
// step 2. This module runs inside the executor's own container, so its
// first non-loopback address is the address children should be told to
// reach it at.
func containerIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", errors.Wrap(err, "listing network interfaces")
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}
