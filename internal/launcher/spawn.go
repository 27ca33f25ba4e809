package launcher

import (
	"os/exec"
)

// Spawner starts a program without waiting for it.
type Spawner interface {
	Spawn(program string, args ...string) error
}

// DetachedSpawner starts programs in their own process group with no
// standard streams attached. The child is reaped in the background and its
// exit status is discarded.
type DetachedSpawner struct{}

func (DetachedSpawner) Spawn(program string, args ...string) error {
	cmd := exec.Command(program, args...)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
