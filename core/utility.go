package core

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

const shaderSuffix = ".spv"

// FindShaderFiles gets the list of files that are compiled shaders
// it is important that the file name does not contain more than two dots,
// the first is always the name of the shader, second is type, and the third one
// ensured that the shader is compiled (only compiled shaders have an .spv extension).
// All shader files will be listed.
func FindShaderFiles(dir string) ([]string, []ShaderType, error) {
	var (
		shaders     []string
		shaderTypes []ShaderType
	)
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if strings.HasSuffix(f.Name(), shaderSuffix) {
			shader := strings.TrimSuffix(f.Name(), shaderSuffix)
			nodes := strings.Split(shader, ".")

			if len(nodes) != 2 {
				return nil
			}

			suffix := nodes[len(nodes)-1]
			switch suffix {
			case "frag":
				shaderTypes = append(shaderTypes, FragmentShaderType)
				shaders = append(shaders, path)
			case "vert":
				shaderTypes = append(shaderTypes, VertexShaderType)
				shaders = append(shaders, path)
			default:
				return nil
			}
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return shaders, shaderTypes, nil
}

// ShaderDirectory serves compiled shader modules out of a directory
// tree, looked up by file name.
type ShaderDirectory struct {
	modules map[string]string
}

// NewShaderDirectory indexes the compiled shaders under dir.
func NewShaderDirectory(dir string) (*ShaderDirectory, error) {
	paths, _, err := FindShaderFiles(dir)
	if err != nil {
		return nil, err
	}
	modules := make(map[string]string, len(paths))
	for _, path := range paths {
		modules[filepath.Base(path)] = path
	}
	return &ShaderDirectory{modules: modules}, nil
}

// LoadModule implements ModuleSource
func (s *ShaderDirectory) LoadModule(name string) ([]byte, error) {
	path, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("no shader module %s in directory", name)
	}
	return ioutil.ReadFile(path)
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := []string{}
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}
