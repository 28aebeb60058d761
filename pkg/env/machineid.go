package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const appID = "rosserial"

// MachineID retrieves the ID identifying this machine for rosserial.
// The host name is used where no machine ID is available.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil && len(id) > 12 {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return appID
}
