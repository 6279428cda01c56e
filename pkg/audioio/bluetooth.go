package audioio

import (
	"context"
	"os/exec"
	"strings"
)

// DetectBluetoothSink reports whether a Bluetooth (bluez) audio sink is
// present in PulseAudio. The scout uses this to pick the default response
// modality: a paired speaker means spoken replies make sense, otherwise the
// model answers in text.
//
// Errors (pactl missing, no PulseAudio) are treated as "no Bluetooth sink".
func DetectBluetoothSink(ctx context.Context) bool {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sinks").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(out)), "bluez")
}
