package app

import "github.com/MeKo-Tech/ndvimap/internal/view"

const osmAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`

// DefaultBasemap is active on a fresh session.
const DefaultBasemap = "osm"

// Basemaps are the selectable background layers, in button order.
var Basemaps = []view.Basemap{
	{
		Key:         "osm",
		Label:       "Mapa",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: osmAttribution,
	},
	{
		Key:         "satellite",
		Label:       "Satélite",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
	},
	{
		Key:         "terrain",
		Label:       "Terreno",
		URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
		Attribution: osmAttribution + ", SRTM | &copy; OpenTopoMap",
	},
}

func knownBasemap(key string) bool {
	for _, b := range Basemaps {
		if b.Key == key {
			return true
		}
	}
	return false
}

func basemapsWithActive(active string) []view.Basemap {
	out := make([]view.Basemap, len(Basemaps))
	copy(out, Basemaps)
	for i := range out {
		out[i].Active = out[i].Key == active
	}
	return out
}
