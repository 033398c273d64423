package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/config"
	"github.com/openloom/openloom/pkg/stores"
)

const starterDevices = `# Device inventory. Hostnames must be unique; role and site drive
# context scoping.
devices:
  - hostname: spine1
    role: spine
    site: dc1
    platform: eos
    mgmt_address: 192.0.2.11/24
  - hostname: leaf11
    role: leaf
    site: dc1
    platform: eos
    mgmt_address: 192.0.2.21/24
  - hostname: leaf12
    role: leaf
    site: dc1
    platform: eos
    mgmt_address: 192.0.2.22/24
`

const starterSiteContext = `# Site-wide services for dc1.
name: site-dc1-services
tier: site
scope:
  sites: [dc1]
payload:
  dns_servers: [192.0.2.53, 192.0.2.54]
  ntp_servers: [192.0.2.123]
`

const starterRolesContext = `# Role defaults. Each YAML document is one context blob.
name: spine-underlay-defaults
tier: role
scope:
  roles: [spine]
payload:
  routing:
    peer_groups:
      - name: UNDERLAY
        remote_as: external
    maximum_paths: 4
---
name: leaf-access-defaults
tier: role
scope:
  roles: [leaf]
payload:
  vlans:
    - id: 10
      name: servers
  tunnel:
    source_interface: Loopback1
    vlan_mappings:
      - vlan: 10
        vni: 10010
`

const starterDeriveScript = `# Derive per-device underlay BGP context for a spine/leaf fabric.
#
# Spines share ASN 65000 and act as overlay route reflectors; each leaf
# gets its own ASN and a VTEP source loopback. Addressing is a pure
# function of fabric position, so reloads produce identical blobs.

spines = [d for d in devices if d["role"] == "spine"]
leaves = [d for d in devices if d["role"] == "leaf"]

def _spine_blob(i):
    d = spines[i]
    return {
        "name": "underlay-" + d["hostname"],
        "tier": "device",
        "scope": {"devices": [d["hostname"]]},
        "payload": {
            "routing": {
                "autonomous_system": 65000,
                "router_id": "10.255.255.%d" % (1 + i),
                "neighbors": [
                    {"address": "10.%d.%d.1" % (1 + i, 11 + j), "peer_group": "UNDERLAY"}
                    for j in range(len(leaves))
                ],
                "address_families": [{
                    "name": "ipv4",
                    "neighbors": [{"neighbor": "UNDERLAY", "activate": True}],
                }],
                "overlay": {
                    "neighbors": [
                        {"address": "10.255.255.%d" % (11 + j)}
                        for j in range(len(leaves))
                    ],
                    "route_reflector_client": True,
                },
            },
        },
    }

def _leaf_blob(j):
    d = leaves[j]
    uplinks = ["10.%d.%d.0" % (1 + i, 11 + j) for i in range(len(spines))]
    return {
        "name": "underlay-" + d["hostname"],
        "tier": "device",
        "scope": {"devices": [d["hostname"]]},
        "payload": {
            "routing": {
                "autonomous_system": 65001 + j,
                "router_id": "10.255.255.%d" % (11 + j),
                "neighbors": [{"address": a, "remote_as": "65000"} for a in uplinks],
                "address_families": [{
                    "name": "ipv4",
                    "neighbors": [{"neighbor": a, "activate": True} for a in uplinks],
                }],
                "overlay": {
                    "neighbors": [
                        {"address": "10.255.255.%d" % (1 + i)}
                        for i in range(len(spines))
                    ],
                },
            },
            "tunnel": {
                "source_loopback": {"id": 1, "address": "10.255.254.%d/32" % (11 + j)},
            },
        },
    }

blobs = [_spine_blob(i) for i in range(len(spines))] + [_leaf_blob(j) for j in range(len(leaves))]
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [workspace-name]",
		Short: "Initialize a new loom workspace",
		Long: `Initialize a new loom workspace in the current directory.

Creates the workspace layout (inventory, contexts, artifacts, policies),
opens the compile ledger, and writes a loom.yaml plus a small spine/leaf
starter fabric that validates and builds as shipped.`,
		Example: `  # Initialize a workspace named after the current directory
  loom init

  # Initialize with an explicit name
  loom init dc1-fabric`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to determine working directory: %w", err)
				}
				name = filepath.Base(cwd)
			}

			if _, err := os.Stat(config.DefaultFile); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", config.DefaultFile)
			}

			fmt.Printf("Initializing workspace %q...\n\n", name)

			dirs := []string{"inventory", "contexts", "artifacts", "policies", ".loom"}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0700); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Printf("✓ Created directory: %s\n", dir)
			}

			ctx := cmd.Context()
			ledger, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(".loom", "ledger.db")})
			if err != nil {
				return fmt.Errorf("failed to create ledger: %w", err)
			}
			if err := ledger.Init(ctx); err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			if err := ledger.Migrate(ctx); err != nil {
				_ = ledger.Close()
				return fmt.Errorf("failed to migrate ledger: %w", err)
			}
			if err := ledger.Close(); err != nil {
				return fmt.Errorf("failed to close ledger: %w", err)
			}
			fmt.Printf("✓ Initialized compile ledger: %s\n", filepath.Join(".loom", "ledger.db"))

			if err := os.WriteFile(config.DefaultFile, []byte(config.Sample(name)), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", config.DefaultFile, err)
			}
			fmt.Printf("✓ Created workspace config: %s\n", config.DefaultFile)

			// Starter files are only written where nothing exists yet, so
			// re-running init never clobbers a workspace's data.
			starters := []struct {
				path    string
				content string
			}{
				{filepath.Join("inventory", "devices.yaml"), starterDevices},
				{filepath.Join("contexts", "site-dc1.yaml"), starterSiteContext},
				{filepath.Join("contexts", "roles.yaml"), starterRolesContext},
				{filepath.Join("contexts", "underlay.star"), starterDeriveScript},
			}
			for _, s := range starters {
				if _, err := os.Stat(s.path); err == nil {
					fmt.Printf("- Kept existing file: %s\n", s.path)
					continue
				}
				if err := os.WriteFile(s.path, []byte(s.content), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", s.path, err)
				}
				fmt.Printf("✓ Created starter file: %s\n", s.path)
			}

			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Review inventory/devices.yaml and the contexts/ sources\n")
			fmt.Printf("  2. Run 'loom validate' to check the starter fabric\n")
			fmt.Printf("  3. Run 'loom build --check' to preview rendered configs\n")
			fmt.Printf("  4. Run 'loom build' to write artifacts and record the run\n")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing loom.yaml")

	return cmd
}
