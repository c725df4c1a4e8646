//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Downloads the modules and builds the skinmesh binary into bin/.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("mod", "download")); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/skinmesh", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Tidies go.mod and go.sum.
func (Build) Tidy() error {
	return goTidy()
}
