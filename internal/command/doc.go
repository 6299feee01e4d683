// Package command dispatches control commands to players over the device
// bus and confirms them against the state the device subsequently reports.
// Commands whose effect is already visible resolve without touching the
// network; commands a device never confirms are retried and finally applied
// once through the cloud API.
package command
