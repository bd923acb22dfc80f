// Package pricing holds the custom VM configurator price tables and the quote
// calculation shared by the catalog service and marketctl.
package pricing

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	OSTypeLinux   = "linux"
	OSTypeWindows = "windows"
	OSTypeCustom  = "custom"
)

const (
	StorageMinGB  = 10
	StorageMaxGB  = 2000
	StorageStepGB = 10
)

// Option is one selectable value with its monthly price in USD.
type Option struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OSOption is an operating system image.
type OSOption struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

// RegionOption is a deployable region.
type RegionOption struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Price    float64 `json:"price"`
}

// AddonOption is an optional service billed on top of the VM.
type AddonOption struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

var cpuPrices = map[int]float64{1: 5, 2: 10, 4: 20, 8: 40, 16: 80}

var ramPrices = map[int]float64{2: 10, 4: 20, 8: 40, 16: 80, 32: 160, 64: 320}

var storageMultipliers = map[string]float64{"SSD": 1, "NVMe SSD": 1.5}

var networkMultipliers = map[string]float64{"Standard": 1, "Premium": 1.5, "Enterprise": 2}

var bandwidths = []int{1, 2, 5, 10}

var operatingSystems = []OSOption{
	{Name: "Ubuntu 22.04 LTS", Type: OSTypeLinux, Price: 0},
	{Name: "Ubuntu 20.04 LTS", Type: OSTypeLinux, Price: 0},
	{Name: "Debian 11", Type: OSTypeLinux, Price: 0},
	{Name: "CentOS 9 Stream", Type: OSTypeLinux, Price: 0},
	{Name: "Fedora 36", Type: OSTypeLinux, Price: 0},
	{Name: "Alpine Linux 3.16", Type: OSTypeLinux, Price: 0},
	{Name: "Windows Server 2022", Type: OSTypeWindows, Price: 20},
	{Name: "Windows Server 2019", Type: OSTypeWindows, Price: 15},
	{Name: "Windows 11 Pro", Type: OSTypeWindows, Price: 25},
	{Name: "Windows 10 Pro", Type: OSTypeWindows, Price: 20},
	{Name: "Data Science Workbench", Type: OSTypeCustom, Price: 10},
	{Name: "Web Development Stack", Type: OSTypeCustom, Price: 5},
	{Name: "Database Server", Type: OSTypeCustom, Price: 8},
	{Name: "AI/ML Environment", Type: OSTypeCustom, Price: 15},
	{Name: "Game Server", Type: OSTypeCustom, Price: 12},
}

var regions = []RegionOption{
	{ID: "us-east-1", Name: "US East", Location: "N. Virginia", Price: 0},
	{ID: "us-west-2", Name: "US West", Location: "Oregon", Price: 0},
	{ID: "eu-central-1", Name: "EU Central", Location: "Frankfurt", Price: 5},
	{ID: "eu-west-1", Name: "EU West", Location: "Ireland", Price: 5},
	{ID: "ap-southeast-1", Name: "Asia Pacific", Location: "Singapore", Price: 10},
	{ID: "ap-northeast-1", Name: "Asia Pacific", Location: "Tokyo", Price: 10},
	{ID: "sa-east-1", Name: "South America", Location: "São Paulo", Price: 15},
	{ID: "ap-southeast-2", Name: "Australia", Location: "Sydney", Price: 15},
}

var addons = []AddonOption{
	{ID: "backup", Name: "Automated Backups", Description: "Daily backups with 30-day retention", Price: 5},
	{ID: "monitoring", Name: "Advanced Monitoring", Description: "Real-time performance monitoring and alerts", Price: 10},
	{ID: "firewall", Name: "Advanced Firewall", Description: "Enterprise-grade firewall with DDoS protection", Price: 15},
	{ID: "loadbalancer", Name: "Load Balancer", Description: "Distribute traffic across multiple instances", Price: 20},
}

// StorageConfig selects disk size and type.
type StorageConfig struct {
	Size int    `json:"size" yaml:"size"`
	Type string `json:"type" yaml:"type"`
}

// NetworkConfig selects bandwidth and tier.
type NetworkConfig struct {
	Bandwidth int    `json:"bandwidth" yaml:"bandwidth"`
	Type      string `json:"type" yaml:"type"`
}

// Configuration is a custom VM as chosen in the configurator.
type Configuration struct {
	CPU     int           `json:"cpu" yaml:"cpu"`
	RAM     int           `json:"ram" yaml:"ram"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Network NetworkConfig `json:"network" yaml:"network"`
	OS      string        `json:"os" yaml:"os"`
	Region  string        `json:"region" yaml:"region"`
	Addons  []string      `json:"addons" yaml:"addons"`
}

// Quote is the per-component monthly price breakdown.
type Quote struct {
	CPU     float64            `json:"cpu"`
	RAM     float64            `json:"ram"`
	Storage float64            `json:"storage"`
	Network float64            `json:"network"`
	OS      float64            `json:"os"`
	Region  float64            `json:"region"`
	Addons  map[string]float64 `json:"addons"`
	Total   float64            `json:"total"`
}

// FieldError reports the configuration field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DefaultConfiguration is the configurator's starting point.
func DefaultConfiguration() Configuration {
	return Configuration{
		CPU:     2,
		RAM:     4,
		Storage: StorageConfig{Size: 100, Type: "SSD"},
		Network: NetworkConfig{Bandwidth: 1, Type: "Standard"},
		OS:      "Ubuntu 22.04 LTS",
		Region:  "us-east-1",
		Addons:  []string{},
	}
}

// Catalog is every table the configurator offers.
type Catalog struct {
	CPU              []Option       `json:"cpu"`
	RAM              []Option       `json:"ram"`
	StorageTypes     []Option       `json:"storage_types"`
	StorageRange     map[string]int `json:"storage_range"`
	NetworkTiers     []Option       `json:"network_tiers"`
	Bandwidths       []int          `json:"bandwidths"`
	OperatingSystems []OSOption     `json:"operating_systems"`
	Regions          []RegionOption `json:"regions"`
	Addons           []AddonOption  `json:"addons"`
	Default          Configuration  `json:"default"`
	DefaultQuote     Quote          `json:"default_quote"`
}

// Options returns the full option catalog with the default configuration.
func Options() Catalog {
	def := DefaultConfiguration()
	q, _ := Calculate(def)
	return Catalog{
		CPU:              intOptions(cpuPrices, "%d vCPU"),
		RAM:              intOptions(ramPrices, "%d GB"),
		StorageTypes:     multiplierOptions(storageMultipliers),
		StorageRange:     map[string]int{"min": StorageMinGB, "max": StorageMaxGB, "step": StorageStepGB},
		NetworkTiers:     multiplierOptions(networkMultipliers),
		Bandwidths:       slices.Clone(bandwidths),
		OperatingSystems: slices.Clone(operatingSystems),
		Regions:          slices.Clone(regions),
		Addons:           slices.Clone(addons),
		Default:          def,
		DefaultQuote:     *q,
	}
}

func intOptions(table map[int]float64, format string) []Option {
	keys := make([]int, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	opts := make([]Option, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, Option{ID: fmt.Sprint(k), Name: fmt.Sprintf(format, k), Price: table[k]})
	}
	return opts
}

// multiplierOptions reports multipliers in the Price field, sorted ascending.
func multiplierOptions(table map[string]float64) []Option {
	opts := make([]Option, 0, len(table))
	for name, mult := range table {
		opts = append(opts, Option{ID: name, Name: name, Price: mult})
	}
	slices.SortFunc(opts, func(a, b Option) int {
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return opts
}

// StoragePrice is round(size/10 × type multiplier).
func StoragePrice(sizeGB int, storageType string) (float64, error) {
	mult, ok := storageMultipliers[storageType]
	if !ok {
		return 0, &FieldError{Field: "storage.type", Reason: fmt.Sprintf("unknown storage type %q", storageType)}
	}
	if sizeGB < StorageMinGB || sizeGB > StorageMaxGB || sizeGB%StorageStepGB != 0 {
		return 0, &FieldError{
			Field:  "storage.size",
			Reason: fmt.Sprintf("must be between %d and %d in steps of %d", StorageMinGB, StorageMaxGB, StorageStepGB),
		}
	}
	return math.Round(float64(sizeGB) / 10 * mult), nil
}

// NetworkPrice is round(bandwidth × 5 × tier multiplier).
func NetworkPrice(bandwidthGbps int, tier string) (float64, error) {
	mult, ok := networkMultipliers[tier]
	if !ok {
		return 0, &FieldError{Field: "network.type", Reason: fmt.Sprintf("unknown network tier %q", tier)}
	}
	if !slices.Contains(bandwidths, bandwidthGbps) {
		return 0, &FieldError{Field: "network.bandwidth", Reason: fmt.Sprintf("must be one of %v", bandwidths)}
	}
	price := math.Round(float64(bandwidthGbps) * 5 * mult)
	// The Standard 1 Gbps tier is bundled with every VM.
	if tier == "Standard" && bandwidthGbps == 1 {
		price = 0
	}
	return price, nil
}

// LookupOS finds an operating system by display name.
func LookupOS(name string) (OSOption, bool) {
	for _, os := range operatingSystems {
		if os.Name == name {
			return os, true
		}
	}
	return OSOption{}, false
}

// LookupRegion finds a region by id.
func LookupRegion(id string) (RegionOption, bool) {
	for _, r := range regions {
		if r.ID == id {
			return r, true
		}
	}
	return RegionOption{}, false
}

func lookupAddon(id string) (AddonOption, bool) {
	for _, a := range addons {
		if a.ID == id {
			return a, true
		}
	}
	return AddonOption{}, false
}

// Calculate validates cfg against every table and prices it.
func Calculate(cfg Configuration) (*Quote, error) {
	q := &Quote{Addons: map[string]float64{}}

	var ok bool
	if q.CPU, ok = cpuPrices[cfg.CPU]; !ok {
		return nil, &FieldError{Field: "cpu", Reason: fmt.Sprintf("unsupported core count %d", cfg.CPU)}
	}
	if q.RAM, ok = ramPrices[cfg.RAM]; !ok {
		return nil, &FieldError{Field: "ram", Reason: fmt.Sprintf("unsupported memory size %d", cfg.RAM)}
	}

	var err error
	if q.Storage, err = StoragePrice(cfg.Storage.Size, cfg.Storage.Type); err != nil {
		return nil, err
	}
	if q.Network, err = NetworkPrice(cfg.Network.Bandwidth, cfg.Network.Type); err != nil {
		return nil, err
	}

	os, ok := LookupOS(cfg.OS)
	if !ok {
		return nil, &FieldError{Field: "os", Reason: fmt.Sprintf("unknown operating system %q", cfg.OS)}
	}
	q.OS = os.Price

	region, ok := LookupRegion(cfg.Region)
	if !ok {
		return nil, &FieldError{Field: "region", Reason: fmt.Sprintf("unknown region %q", cfg.Region)}
	}
	q.Region = region.Price

	for _, id := range cfg.Addons {
		addon, ok := lookupAddon(id)
		if !ok {
			return nil, &FieldError{Field: "addons", Reason: fmt.Sprintf("unknown add-on %q", id)}
		}
		if _, dup := q.Addons[id]; dup {
			return nil, &FieldError{Field: "addons", Reason: fmt.Sprintf("add-on %q selected twice", id)}
		}
		q.Addons[id] = addon.Price
	}

	q.Total = q.CPU + q.RAM + q.Storage + q.Network + q.OS + q.Region
	for _, p := range q.Addons {
		q.Total += p
	}
	return q, nil
}
