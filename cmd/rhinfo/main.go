// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command rhinfo dumps the properties of every Vulkan device on the
// system as JSON. No window or surface is involved, the instance is
// created headless.
package main

import (
	"encoding/json"
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/tinyrhi/core"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	pretty = flag.Bool("pretty", false, "Indent the JSON output")
)

func main() {
	flag.Parse()

	cfg := core.InstanceConfiguration{
		DebugMode:  *debug,
		Extensions: []string{},
		Layers:     []string{},
	}

	instance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, nil, cfg)
	if err != nil {
		log.WithError(err).Fatal("Instance creation failed")
	}
	defer instance.Destroy()

	type deviceReport struct {
		core.PhysicalDeviceInfo
		DepthFormat    core.Format
		DepthSupported bool
	}

	devices := instance.AvailableDevices()
	var info []deviceReport
	for i, deviceInfo := range instance.PhysicalDevicesInfo() {
		report := deviceReport{PhysicalDeviceInfo: deviceInfo}
		if i < len(devices) {
			report.DepthFormat, report.DepthSupported = core.SupportedDepthFormat(devices[i])
		}
		info = append(info, report)
	}

	var bytes []byte
	if *pretty {
		bytes, err = json.MarshalIndent(info, "", "  ")
	} else {
		bytes, err = json.Marshal(info)
	}
	if err != nil {
		log.WithError(err).Fatal("Device info did not marshal")
	}
	fmt.Printf("%s\n", bytes)
}
