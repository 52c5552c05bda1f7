package station

import "strings"

type Station struct {
	Name string
}

func (s Station) Code() string {
	return s.Name
}

func (s Station) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Bar         Station
	HotKitchen  Station
	ColdKitchen Station
	Expo        Station
}

var Stations = Enum{
	Bar:         Station{Name: "bar"},
	HotKitchen:  Station{Name: "hot-kitchen"},
	ColdKitchen: Station{Name: "cold-kitchen"},
	Expo:        Station{Name: "expo"},
}

var All = []Station{
	Stations.Bar,
	Stations.HotKitchen,
	Stations.ColdKitchen,
	Stations.Expo,
}

// ByName returns the station for a given name, or nil if not found
func ByName(name string) *Station {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
