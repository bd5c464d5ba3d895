package documents

func settingsDefaults() map[string]any {
	return map[string]any{
		"alertOnMessageForMsec":   4000,
		"clearRoomFilterOnEnter":  true,
		"clearRoomFilterOnEscape": true,
		"theme":                   DefaultThemeName,
		"writeAliases":            map[string]any{},
		"media": map[string]any{
			"autoLoad":             true,
			"autoPlay":             false,
			"autoPlayGIF":          true,
			"autoHideOSDAfterMsec": 3000,
			"defaultVolume":        100,
			"startMuted":           false,
		},
		"keys": map[string]any{
			"startPythonDebugger": []string{"Alt+Shift+D"},
			"toggleDebugConsole":  []string{"Alt+Shift+C", "F1"},
			"reloadConfig":        []string{"Alt+Shift+R"},

			"zoomIn":    []string{"Ctrl++"},
			"zoomOut":   []string{"Ctrl+-"},
			"zoomReset": []string{"Ctrl+="},

			"scrollUp":       []string{"Alt+Up", "Alt+K"},
			"scrollDown":     []string{"Alt+Down", "Alt+J"},
			"scrollPageUp":   []string{"Alt+Ctrl+Up", "Alt+Ctrl+K", "PgUp"},
			"scrollPageDown": []string{"Alt+Ctrl+Down", "Alt+Ctrl+J", "PgDown"},
			"scrollToTop":    []string{"Alt+Ctrl+Shift+Up", "Alt+Ctrl+Shift+K", "Home"},
			"scrollToBottom": []string{"Alt+Ctrl+Shift+Down", "Alt+Ctrl+Shift+J", "End"},

			"previousTab": []string{"Alt+Shift+Left", "Alt+Shift+H"},
			"nextTab":     []string{"Alt+Shift+Right", "Alt+Shift+L"},

			"focusMainPane":   []string{"Alt+S"},
			"clearRoomFilter": []string{"Alt+Shift+S"},
			"accountSettings": []string{"Alt+A"},
			"addNewChat":      []string{"Alt+N"},
			"addNewAccount":   []string{"Alt+Shift+N"},

			"goToLastPage":          []string{"Ctrl+Tab"},
			"goToPreviousRoom":      []string{"Alt+Shift+Up", "Alt+Shift+K"},
			"goToNextRoom":          []string{"Alt+Shift+Down", "Alt+Shift+J"},
			"toggleCollapseAccount": []string{"Alt+O"},

			"clearRoomMessages":           []string{"Ctrl+L"},
			"sendFile":                    []string{"Alt+F"},
			"sendFileFromPathInClipboard": []string{"Alt+Shift+F"},
		},
	}
}

func stateDefaults() map[string]any {
	return map[string]any{
		"collapseAccounts": map[string]any{},
		"page":             "Pages/Default.qml",
		"pageProperties":   map[string]any{},
	}
}

func historyDefaults() map[string]any {
	return map[string]any{"console": []any{}}
}
