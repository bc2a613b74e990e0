// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "golang.org/x/sys/unix"

// tcsetpgrp and tcgetpgrp wrap the TIOCSPGRP/TIOCGPGRP ioctls golang.org/x/
// sys/unix exposes instead of a named syscall, since the controlling
// terminal is arbitrated entirely through ioctl on every Unix gosh targets.
func tcsetpgrp(fd, pgid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

func tcgetpgrp(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}
