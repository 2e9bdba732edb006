package api

import (
	"github.com/sketchbridge/sketchbridge-go/lib"
	"github.com/sketchbridge/sketchbridge-go/lib/api/ai"
	"github.com/sketchbridge/sketchbridge-go/lib/api/stats"
)

func InitAPI(store *lib.InitStore) {
	stats.Init(store)
	ai.Init(store)
}
