package config

type GitConfig struct {
	Disabled bool
	Order    int

	Uri            string
	KnownHostsFile string `json:"knownHostsFile"`
	PrivateKey     string `json:"privateKey"`

	Basedir                string `json:"basedir"`
	DisableBaseDirCleaning bool   `json:"disableBaseDirCleaning"`
	SearchPath             string `json:"searchPath"` // certificates live below this directory of the repo

	DefaultBranchName string `json:"defaultBranchName"`

	CloneOnStart bool `json:"clone-on-start"`
	ForcePull    bool `json:"force-pull"`
	ShowProgress bool `json:"showProgress"`

	RefreshRateMillis int64 `json:"refreshRate"`
	// OnDemandRefreshMillis minimum gap between pulls triggered by reads when RefreshRateMillis is 0 (default 30s)
	OnDemandRefreshMillis int64 `json:"onDemandRefresh"`
}
