package mqtt

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const machineIDPath = "/etc/machine-id"

// GetMachineID returns the machine id in UUID format, which keeps topics of
// several machines on a shared broker apart. Without systemd-id128 the id is
// read from /etc/machine-id.
func GetMachineID() (string, error) {
	out, err := exec.Command("systemd-id128", "machine-id", "-u").Output()
	if err == nil {
		return strings.TrimSpace(string(out)), nil
	}
	log.WithError(err).Debug("systemd-id128 failed, reading " + machineIDPath)

	id, ferr := readMachineID(machineIDPath)
	if ferr != nil {
		return "", fmt.Errorf("Failed to retrieve machine-id: %w", ferr)
	}
	return id, nil
}

// readMachineID parses a machine-id(5) file, 32 lowercase hex characters,
// and formats it like `systemd-id128 -u`.
func readMachineID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return "", fmt.Errorf("invalid machine id in %s: %w", path, err)
	}
	return id.String(), nil
}
