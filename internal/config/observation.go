package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// CameraConfig selects what one camera captures.
type CameraConfig struct {
	RGB       bool   `json:"rgb" yaml:"rgb"`
	Depth     bool   `json:"depth" yaml:"depth"`
	Mask      bool   `json:"mask" yaml:"mask"`
	ImageSize [2]int `json:"image_size" yaml:"image_size"`
}

// ObservationConfig selects which observation channels the simulator
// records. It is passed through to the scene untouched.
type ObservationConfig struct {
	LeftShoulderCamera  CameraConfig `json:"left_shoulder_camera" yaml:"left_shoulder_camera"`
	RightShoulderCamera CameraConfig `json:"right_shoulder_camera" yaml:"right_shoulder_camera"`
	OverheadCamera      CameraConfig `json:"overhead_camera" yaml:"overhead_camera"`
	WristCamera         CameraConfig `json:"wrist_camera" yaml:"wrist_camera"`
	FrontCamera         CameraConfig `json:"front_camera" yaml:"front_camera"`

	JointVelocities       bool `json:"joint_velocities" yaml:"joint_velocities"`
	JointPositions        bool `json:"joint_positions" yaml:"joint_positions"`
	JointForces           bool `json:"joint_forces" yaml:"joint_forces"`
	GripperOpen           bool `json:"gripper_open" yaml:"gripper_open"`
	GripperPose           bool `json:"gripper_pose" yaml:"gripper_pose"`
	GripperJointPositions bool `json:"gripper_joint_positions" yaml:"gripper_joint_positions"`
	TaskLowDimState       bool `json:"task_low_dim_state" yaml:"task_low_dim_state"`
}

var defaultCamera = CameraConfig{RGB: true, Depth: true, Mask: true, ImageSize: [2]int{128, 128}}

// DefaultObservationConfig records every channel at 128x128.
func DefaultObservationConfig() ObservationConfig {
	return ObservationConfig{
		LeftShoulderCamera:    defaultCamera,
		RightShoulderCamera:   defaultCamera,
		OverheadCamera:        defaultCamera,
		WristCamera:           defaultCamera,
		FrontCamera:           defaultCamera,
		JointVelocities:       true,
		JointPositions:        true,
		JointForces:           true,
		GripperOpen:           true,
		GripperPose:           true,
		GripperJointPositions: true,
		TaskLowDimState:       true,
	}
}

// Cameras returns the camera configs keyed by camera name.
func (c ObservationConfig) Cameras() map[string]CameraConfig {
	return map[string]CameraConfig{
		"left_shoulder":  c.LeftShoulderCamera,
		"right_shoulder": c.RightShoulderCamera,
		"overhead":       c.OverheadCamera,
		"wrist":          c.WristCamera,
		"front":          c.FrontCamera,
	}
}

func (c ObservationConfig) Validate() error {
	for name, cam := range c.Cameras() {
		if cam.ImageSize[0] <= 0 || cam.ImageSize[1] <= 0 {
			return fmt.Errorf("%s camera: image size must be positive, got %dx%d", name, cam.ImageSize[0], cam.ImageSize[1])
		}
	}
	return nil
}

// LoadObservationConfig reads a JSON or YAML file (chosen by extension) over
// DefaultObservationConfig, so omitted keys keep their defaults. An empty
// path returns the defaults.
func LoadObservationConfig(path string) (ObservationConfig, error) {
	cfg := DefaultObservationConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return cfg, fmt.Errorf("read observation config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("observation config %s: unsupported format %q (want .json, .yaml or .yml)", path, ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse observation config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("observation config %s: %w", path, err)
	}
	return cfg, nil
}
