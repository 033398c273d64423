// Package policy provides Open Policy Agent (OPA) integration for loom.
//
// This package gates compiled device configurations with Rego rules. It
// ships built-in policies for common fabric hygiene requirements and
// supports custom policy loading from workspace directories.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Gating a resolved record:
//
//	result, err := engine.EvaluateRecord(ctx, record)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "policies",
//	    "/opt/loom/extra-checks.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Evaluation Scopes
//
// Policies run in two scopes. Device-scoped rules inspect input.record,
// the resolved record of a single device, and gate each device's build
// between validation and rendering. Fabric-scoped rules inspect
// input.fabric, the resolved records of the whole fleet, and run during
// `loom validate` where every device is materialized anyway. A rule is
// scoped by the input it guards on: during a device pass input.fabric is
// undefined and fabric rules simply never fire, and vice versa.
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. bgp-asn-range - Warns on AS numbers outside the private ranges
//  2. router-id-format - Requires router-ids to be IPv4 dotted quads
//  3. vni-range - Keeps VXLAN identifiers inside the 24-bit space
//  4. duplicate-router-id - Rejects router-id collisions across the fabric
//  5. overlay-replication - Warns when flood lists and EVPN peers are mixed
//
// # Custom Policies
//
// Custom policies are written in Rego and loaded from .rego files. The
// file name becomes the policy name, the header comment its description,
// and a "# severity:" header line its default severity:
//
//	# Spine loopbacks must come from the 10.0.250.0/24 block
//	# severity: error
//	package custom.policies.loopbacks
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.record.device.role == "spine"
//	    rid := input.record.routing.router_id
//	    not startswith(rid, "10.0.250.")
//
//	    violation := {
//	        "message": sprintf("Spine router-id %s is outside 10.0.250.0/24", [rid]),
//	        "severity": "error",
//	        "device": input.device.hostname,
//	    }
//	}
//
// Violations are collected from the deny set of the policy's package. Each
// entry may be a bare string or an object with message, severity, and
// device keys.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Findings that should be reviewed but don't block builds
//   - error: Violations that block builds
//   - critical: Severe violations requiring immediate attention
//
// A device whose evaluation produces an error or critical violation fails
// its compile with the policy error class; warnings are recorded and the
// build continues.
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are parsed once at load time and reused across every device in
// a run. A policy that fails to evaluate is reported as a warning on the
// result and skipped, so a broken custom policy degrades to advisory
// instead of blocking the fleet.
package policy
