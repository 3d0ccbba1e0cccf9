package firewalld

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// D-Bus identity of the firewalld daemon.
// See https://firewalld.org/documentation/man-pages/firewalld.dbus.html
const (
	firewalldName       = "org.fedoraproject.FirewallD1"
	firewalldPath       = "/org/fedoraproject/FirewallD1"
	firewalldConfigPath = "/org/fedoraproject/FirewallD1/config"

	coreInterface       = "org.fedoraproject.FirewallD1"
	configInterface     = "org.fedoraproject.FirewallD1.config"
	configZoneInterface = "org.fedoraproject.FirewallD1.config.zone"
)

// DBusClient implements ConfigClient against a running firewalld daemon on
// the system bus. Every object, zone attachments included, is written to
// the permanent configuration; nothing is active until Reload swaps the
// permanent configuration into the runtime. Writing attachments to the
// runtime zone interface instead would not survive that reload.
type DBusClient struct {
	conn *dbus.Conn

	// zonePaths caches config object paths resolved by getZoneByName.
	zonePaths map[string]dbus.ObjectPath
}

// Ensure DBusClient implements ConfigClient.
var _ ConfigClient = (*DBusClient)(nil)

// NewDBusClient connects to the system bus.
func NewDBusClient() (*DBusClient, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	return &DBusClient{conn: conn, zonePaths: make(map[string]dbus.ObjectPath)}, nil
}

// Close closes the bus connection.
func (c *DBusClient) Close() error {
	return c.conn.Close()
}

func (c *DBusClient) coreObject() dbus.BusObject {
	return c.conn.Object(firewalldName, firewalldPath)
}

func (c *DBusClient) configObject() dbus.BusObject {
	return c.conn.Object(firewalldName, firewalldConfigPath)
}

// zoneConfigObject resolves the permanent-configuration object for a zone.
// Zone paths are stable for the life of the daemon, so lookups are cached.
func (c *DBusClient) zoneConfigObject(ctx context.Context, zone string) (dbus.BusObject, error) {
	if path, ok := c.zonePaths[zone]; ok {
		return c.conn.Object(firewalldName, path), nil
	}

	var path dbus.ObjectPath
	err := c.configObject().
		CallWithContext(ctx, configInterface+".getZoneByName", 0, zone).
		Store(&path)
	if err != nil {
		return nil, fmt.Errorf("looking up zone %q: %w", zone, err)
	}

	c.zonePaths[zone] = path
	return c.conn.Object(firewalldName, path), nil
}

// isAlreadyExists reports whether a firewalld error means the requested
// object already exists. firewalld raises a single exception type whose
// message starts with an error code.
func isAlreadyExists(err error) bool {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		return false
	}
	msg := fmt.Sprint(dbusErr.Body...)
	return strings.Contains(msg, "NAME_CONFLICT") || strings.Contains(msg, "ALREADY_ENABLED")
}

// ipsetSettings mirrors firewalld's ipset settings tuple
// (version, name, description, type, options, entries).
type ipsetSettings struct {
	Version     string
	Name        string
	Description string
	Type        string
	Options     map[string]string
	Entries     []string
}

// dbusFamily maps an address family to firewalld's ipset family option.
func dbusFamily(family domain.Family) string {
	if family == domain.FamilyIPv6 {
		return "inet6"
	}
	return "inet"
}

// EnsureIPSet creates an ipset definition in the permanent configuration.
func (c *DBusClient) EnsureIPSet(ctx context.Context, obj *domain.IPSetObject) error {
	settings := ipsetSettings{
		Name:    obj.Name,
		Type:    obj.Type,
		Options: map[string]string{"family": dbusFamily(obj.Family)},
		Entries: obj.Entries,
	}

	var path dbus.ObjectPath
	err := c.configObject().
		CallWithContext(ctx, configInterface+".addIPSet", 0, obj.Name, settings).
		Store(&path)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("creating ipset %q: %w", obj.Name, err)
	}
	return nil
}

// serviceSettings mirrors firewalld's service settings tuple
// (version, name, description, ports, modules, destinations).
type serviceSettings struct {
	Version      string
	Name         string
	Description  string
	Ports        []portTuple
	Modules      []string
	Destinations map[string]string
}

type portTuple struct {
	Port     string
	Protocol string
}

// EnsureService creates a service definition in the permanent configuration.
func (c *DBusClient) EnsureService(ctx context.Context, obj *domain.ServiceObject) error {
	settings := serviceSettings{Name: obj.Name}
	for _, p := range obj.Ports {
		settings.Ports = append(settings.Ports, portTuple{Port: p.Port, Protocol: p.Protocol})
	}

	var path dbus.ObjectPath
	err := c.configObject().
		CallWithContext(ctx, configInterface+".addService", 0, obj.Name, settings).
		Store(&path)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("creating service %q: %w", obj.Name, err)
	}
	return nil
}

// EnsureZoneService binds a service to a zone in the permanent
// configuration. The binding becomes active on the next reload, at which
// point the service definition it references is active too.
func (c *DBusClient) EnsureZoneService(ctx context.Context, obj *domain.ZoneServiceObject) error {
	zone, err := c.zoneConfigObject(ctx, obj.Zone)
	if err != nil {
		return err
	}

	call := zone.CallWithContext(ctx, configZoneInterface+".addService", 0, obj.Service)
	if call.Err != nil && !isAlreadyExists(call.Err) {
		return fmt.Errorf("adding service %q to zone %q: %w", obj.Service, obj.Zone, call.Err)
	}
	return nil
}

// EnsureRichRule adds the object's rendered rich rules to its zone in the
// permanent configuration.
func (c *DBusClient) EnsureRichRule(ctx context.Context, obj *domain.RichRuleObject) error {
	zone, err := c.zoneConfigObject(ctx, obj.Zone)
	if err != nil {
		return err
	}

	for _, rule := range obj.Render() {
		call := zone.CallWithContext(ctx, configZoneInterface+".addRichRule", 0, rule)
		if call.Err != nil && !isAlreadyExists(call.Err) {
			return fmt.Errorf("adding rich rule to zone %q: %w", obj.Zone, call.Err)
		}
	}
	return nil
}

// Reload reloads firewalld, swapping the permanent configuration into the
// runtime. This is what activates everything the Ensure calls wrote.
func (c *DBusClient) Reload(ctx context.Context) error {
	call := c.coreObject().CallWithContext(ctx, coreInterface+".reload", 0)
	if call.Err != nil {
		return fmt.Errorf("reloading firewalld: %w", call.Err)
	}
	return nil
}
