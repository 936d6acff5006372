// Package config loads termcore settings.
//
// Settings are resolved in three layers, later layers overriding earlier:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← TERMCORE_*
//	├─────────────────────────────┤
//	│  2. Settings File           │  ← ~/.config/termcore/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// # Basic Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Terminal.ScrollbackLines)
//
// # Live Reload
//
// Watch re-loads the file whenever it is written and reports the new
// configuration through a callback:
//
//	w, err := config.Watch(path, func(cfg *config.Config, err error) {
//	    if err == nil {
//	        apply(cfg)
//	    }
//	})
//	defer w.Close()
package config
