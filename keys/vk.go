package keys

// Windows virtual-key codes, see
// https://learn.microsoft.com/windows/win32/inputdev/virtual-key-codes.
// Letters and digits have no VK_ constant; their codes are the ASCII values.
// maxVirtualKey is the largest code a low-level keyboard event carries.
const maxVirtualKey = 0xFF

var table = [...]struct {
	key  Key
	name string
	vk   uint32
}{
	{A, "A", 0x41},
	{B, "B", 0x42},
	{C, "C", 0x43},
	{D, "D", 0x44},
	{E, "E", 0x45},
	{F, "F", 0x46},
	{G, "G", 0x47},
	{H, "H", 0x48},
	{I, "I", 0x49},
	{J, "J", 0x4A},
	{K, "K", 0x4B},
	{L, "L", 0x4C},
	{M, "M", 0x4D},
	{N, "N", 0x4E},
	{O, "O", 0x4F},
	{P, "P", 0x50},
	{Q, "Q", 0x51},
	{R, "R", 0x52},
	{S, "S", 0x53},
	{T, "T", 0x54},
	{U, "U", 0x55},
	{V, "V", 0x56},
	{W, "W", 0x57},
	{X, "X", 0x58},
	{Y, "Y", 0x59},
	{Z, "Z", 0x5A},

	{Num0, "Num0", 0x30},
	{Num1, "Num1", 0x31},
	{Num2, "Num2", 0x32},
	{Num3, "Num3", 0x33},
	{Num4, "Num4", 0x34},
	{Num5, "Num5", 0x35},
	{Num6, "Num6", 0x36},
	{Num7, "Num7", 0x37},
	{Num8, "Num8", 0x38},
	{Num9, "Num9", 0x39},

	{ShiftLeft, "ShiftLeft", 0xA0},
	{ShiftRight, "ShiftRight", 0xA1},
	{ControlLeft, "ControlLeft", 0xA2},
	{ControlRight, "ControlRight", 0xA3},
	{Alt, "Alt", 0xA4},
	{AltGr, "AltGr", 0xA5},
	{MetaLeft, "MetaLeft", 0x5B},
	{MetaRight, "MetaRight", 0x5C},
	{Apps, "Apps", 0x5D},

	{CapsLock, "CapsLock", 0x14},
	{NumLock, "NumLock", 0x90},
	{ScrollLock, "ScrollLock", 0x91},

	{Backspace, "Backspace", 0x08},
	{Tab, "Tab", 0x09},
	{Return, "Return", 0x0D},
	{Pause, "Pause", 0x13},
	{Escape, "Escape", 0x1B},
	{Space, "Space", 0x20},
	{PageUp, "PageUp", 0x21},
	{PageDown, "PageDown", 0x22},
	{End, "End", 0x23},
	{Home, "Home", 0x24},
	{LeftArrow, "LeftArrow", 0x25},
	{UpArrow, "UpArrow", 0x26},
	{RightArrow, "RightArrow", 0x27},
	{DownArrow, "DownArrow", 0x28},
	{PrintScreen, "PrintScreen", 0x2C},
	{Insert, "Insert", 0x2D},
	{Delete, "Delete", 0x2E},

	{F1, "F1", 0x70},
	{F2, "F2", 0x71},
	{F3, "F3", 0x72},
	{F4, "F4", 0x73},
	{F5, "F5", 0x74},
	{F6, "F6", 0x75},
	{F7, "F7", 0x76},
	{F8, "F8", 0x77},
	{F9, "F9", 0x78},
	{F10, "F10", 0x79},
	{F11, "F11", 0x7A},
	{F12, "F12", 0x7B},
	{F13, "F13", 0x7C},
	{F14, "F14", 0x7D},
	{F15, "F15", 0x7E},
	{F16, "F16", 0x7F},
	{F17, "F17", 0x80},
	{F18, "F18", 0x81},
	{F19, "F19", 0x82},
	{F20, "F20", 0x83},
	{F21, "F21", 0x84},
	{F22, "F22", 0x85},
	{F23, "F23", 0x86},
	{F24, "F24", 0x87},

	{Kp0, "Kp0", 0x60},
	{Kp1, "Kp1", 0x61},
	{Kp2, "Kp2", 0x62},
	{Kp3, "Kp3", 0x63},
	{Kp4, "Kp4", 0x64},
	{Kp5, "Kp5", 0x65},
	{Kp6, "Kp6", 0x66},
	{Kp7, "Kp7", 0x67},
	{Kp8, "Kp8", 0x68},
	{Kp9, "Kp9", 0x69},
	{KpMultiply, "KpMultiply", 0x6A},
	{KpPlus, "KpPlus", 0x6B},
	{KpMinus, "KpMinus", 0x6D},
	{KpDelete, "KpDelete", 0x6E},
	{KpDivide, "KpDivide", 0x6F},

	{SemiColon, "SemiColon", 0xBA},
	{Equal, "Equal", 0xBB},
	{Comma, "Comma", 0xBC},
	{Minus, "Minus", 0xBD},
	{Dot, "Dot", 0xBE},
	{Slash, "Slash", 0xBF},
	{BackQuote, "BackQuote", 0xC0},
	{LeftBracket, "LeftBracket", 0xDB},
	{BackSlash, "BackSlash", 0xDC},
	{RightBracket, "RightBracket", 0xDD},
	{Quote, "Quote", 0xDE},
	{IntlBackslash, "IntlBackslash", 0xE2},

	{VolumeMute, "VolumeMute", 0xAD},
	{VolumeDown, "VolumeDown", 0xAE},
	{VolumeUp, "VolumeUp", 0xAF},
	{MediaNextTrack, "MediaNextTrack", 0xB0},
	{MediaPrevTrack, "MediaPrevTrack", 0xB1},
	{MediaStop, "MediaStop", 0xB2},
	{MediaPlayPause, "MediaPlayPause", 0xB3},
}

var (
	names  [numNamed]string
	codes  [numNamed]uint32
	byName = make(map[string]Key, len(table))
	byVK   = make(map[uint32]Key, len(table))
)

func init() {
	for _, e := range table {
		names[e.key] = e.name
		codes[e.key] = e.vk
		byName[e.name] = e.key
		byVK[e.vk] = e.key
	}
}

// FromVirtualKey translates a Windows virtual-key code. Codes outside the
// table map to Unknown(vk).
func FromVirtualKey(vk uint32) Key {
	if k, ok := byVK[vk]; ok {
		return k
	}
	return Unknown(vk)
}

// VirtualKey returns the Windows virtual-key code for k.
func VirtualKey(k Key) (uint32, bool) {
	if code, ok := k.UnknownCode(); ok {
		return code, k.Valid()
	}
	if !k.Valid() {
		return 0, false
	}
	return codes[k], true
}

// Named returns every named key in declaration order.
func Named() []Key {
	out := make([]Key, 0, numNamed-1)
	for k := invalid + 1; k < numNamed; k++ {
		out = append(out, k)
	}
	return out
}
