package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID is the application key of the protected machine ID.
const AppID = "firmata.go"

// MachineID retrieves an ID identifying the machine, or "firmata" when
// the host doesn't provide one.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.V(2).Infof("machine id: %v", err)
		return "firmata"
	}
	return id[:12]
}
