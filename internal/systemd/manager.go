// Package systemd talks to the service manager over D-Bus.
package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Bus selects the systemd instance to connect to.
type Bus string

// Buses.
const (
	BusSystem Bus = "system"
	BusUser   Bus = "user"
)

// Manager queries and restarts units via D-Bus.
type Manager struct {
	conn *dbus.Conn
	bus  Bus
}

// NewManager connects to the system or user instance of systemd.
func NewManager(ctx context.Context, bus Bus) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch bus {
	case BusUser:
		conn, err = dbus.NewUserConnectionContext(ctx)
	case BusSystem, "":
		bus = BusSystem
		conn, err = dbus.NewSystemConnectionContext(ctx)
	default:
		return nil, fmt.Errorf("unknown systemd bus %q", bus)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s bus: %w", bus, err)
	}
	return &Manager{conn: conn, bus: bus}, nil
}

// GetServiceStatus returns the unit state as "ActiveState (SubState)",
// for example "active (running)".
func (m *Manager) GetServiceStatus(ctx context.Context, serviceName string) (string, error) {
	props, err := m.conn.GetUnitPropertiesContext(ctx, serviceName)
	if err != nil {
		return "", err
	}
	active, _ := props["ActiveState"].(string)
	sub, _ := props["SubState"].(string)
	if sub == "" {
		return active, nil
	}
	return fmt.Sprintf("%s (%s)", active, sub), nil
}

// RestartService queues a restart job in replace mode. It does not wait for
// the job since restarting this process ends the request serving it.
func (m *Manager) RestartService(ctx context.Context, serviceName string) error {
	_, err := m.conn.RestartUnitContext(ctx, serviceName, "replace", nil)
	return err
}

// Bus returns the bus the manager is connected to.
func (m *Manager) Bus() Bus {
	return m.bus
}

// Close closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
