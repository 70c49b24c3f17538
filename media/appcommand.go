package media

// WM_APPCOMMAND command ids. Play and Pause have their own commands, unlike
// the media virtual keys where both map to the play/pause toggle.
const (
	appCommandNextTrack     = 11
	appCommandPreviousTrack = 12
	appCommandStop          = 13
	appCommandPlay          = 46
	appCommandPause         = 47
)

var appCommands = map[Action]uint16{
	Play:     appCommandPlay,
	Pause:    appCommandPause,
	Stop:     appCommandStop,
	Next:     appCommandNextTrack,
	Previous: appCommandPreviousTrack,
}

// globalKeys are the media virtual keys used when a source has no window to
// post to. Play and Pause are absent: the only key for them toggles, which
// could do the opposite of what was asked.
var globalKeys = map[Action]int{
	Stop:     0xB2, // VK_MEDIA_STOP
	Next:     0xB0, // VK_MEDIA_NEXT_TRACK
	Previous: 0xB1, // VK_MEDIA_PREV_TRACK
}

// appCommandLParam packs cmd into the high word of WM_APPCOMMAND's lParam,
// with the device bits left at zero (FAPPCOMMAND_KEY).
func appCommandLParam(cmd uint16) uintptr {
	return uintptr(cmd) << 16
}
