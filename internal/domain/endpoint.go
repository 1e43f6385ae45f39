package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Endpoint is the path of a Django REST list endpoint, relative to the API
// base URL and ending in a slash.
type Endpoint string

const (
	EndpointGeographies     Endpoint = "/api/v1/infrastructure/geographies/"
	EndpointAreas           Endpoint = "/api/v1/infrastructure/areas/"
	EndpointStations        Endpoint = "/api/v1/infrastructure/freshwater-stations/"
	EndpointHalls           Endpoint = "/api/v1/infrastructure/halls/"
	EndpointContainers      Endpoint = "/api/v1/infrastructure/containers/"
	EndpointContainerTypes  Endpoint = "/api/v1/infrastructure/container-types/"
	EndpointFeedContainers  Endpoint = "/api/v1/infrastructure/feed-containers/"
	EndpointSensors         Endpoint = "/api/v1/infrastructure/sensors/"
	EndpointBatches         Endpoint = "/api/v1/batch/batches/"
	EndpointSpecies         Endpoint = "/api/v1/batch/species/"
	EndpointLifecycleStages Endpoint = "/api/v1/batch/lifecycle-stages/"
	EndpointAssignments     Endpoint = "/api/v1/batch/container-assignments/"
	EndpointTransfers       Endpoint = "/api/v1/batch/transfers/"
	EndpointGrowthSamples   Endpoint = "/api/v1/batch/growth-samples/"
	EndpointMortalityEvents Endpoint = "/api/v1/batch/mortality-events/"
	EndpointFeeds           Endpoint = "/api/v1/inventory/feeds/"
	EndpointFeedPurchases   Endpoint = "/api/v1/inventory/feed-purchases/"
	EndpointFeedingEvents   Endpoint = "/api/v1/inventory/feeding-events/"
	EndpointLiceCounts      Endpoint = "/api/v1/health/lice-counts/"
	EndpointTreatments      Endpoint = "/api/v1/health/treatments/"
	EndpointReadings        Endpoint = "/api/v1/environmental/readings/"
	EndpointParameters      Endpoint = "/api/v1/environmental/parameters/"
	EndpointWeather         Endpoint = "/api/v1/environmental/weather/"
	EndpointBroodstockFish  Endpoint = "/api/v1/broodstock/fish/"
	EndpointBreedingPlans   Endpoint = "/api/v1/broodstock/breeding-plans/"
	EndpointEggProductions  Endpoint = "/api/v1/broodstock/egg-productions/"
	EndpointScenarios       Endpoint = "/api/v1/scenario/scenarios/"
	EndpointTempProfiles    Endpoint = "/api/v1/scenario/temperature-profiles/"
)

var endpointNames = map[string]Endpoint{
	"geographies":          EndpointGeographies,
	"areas":                EndpointAreas,
	"stations":             EndpointStations,
	"halls":                EndpointHalls,
	"containers":           EndpointContainers,
	"container-types":      EndpointContainerTypes,
	"feed-containers":      EndpointFeedContainers,
	"sensors":              EndpointSensors,
	"batches":              EndpointBatches,
	"species":              EndpointSpecies,
	"lifecycle-stages":     EndpointLifecycleStages,
	"assignments":          EndpointAssignments,
	"transfers":            EndpointTransfers,
	"growth-samples":       EndpointGrowthSamples,
	"mortality-events":     EndpointMortalityEvents,
	"feeds":                EndpointFeeds,
	"feed-purchases":       EndpointFeedPurchases,
	"feeding-events":       EndpointFeedingEvents,
	"lice-counts":          EndpointLiceCounts,
	"treatments":           EndpointTreatments,
	"readings":             EndpointReadings,
	"parameters":           EndpointParameters,
	"weather":              EndpointWeather,
	"broodstock-fish":      EndpointBroodstockFish,
	"breeding-plans":       EndpointBreedingPlans,
	"egg-productions":      EndpointEggProductions,
	"scenarios":            EndpointScenarios,
	"temperature-profiles": EndpointTempProfiles,
}

// ResolveEndpoint accepts either a short name such as "containers" or a
// path beginning with "/api/". Paths are normalised to end in a slash.
func ResolveEndpoint(value string) (Endpoint, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	if endpoint, ok := endpointNames[strings.ToLower(value)]; ok {
		return endpoint, nil
	}
	if strings.HasPrefix(value, "/api/") {
		if !strings.HasSuffix(value, "/") {
			value += "/"
		}
		return Endpoint(value), nil
	}
	return "", fmt.Errorf("unknown endpoint %q", value)
}

// EndpointNames lists the short names accepted by ResolveEndpoint.
func EndpointNames() []string {
	names := make([]string, 0, len(endpointNames))
	for name := range endpointNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detail returns the path of a single object under the endpoint.
func (e Endpoint) Detail(id int64) string {
	return fmt.Sprintf("%s%d/", e, id)
}

func (e Endpoint) String() string {
	return string(e)
}
