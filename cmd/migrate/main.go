package main

import (
	"flag"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/x5500/QUIKSharp-sub001/config"
	"github.com/x5500/QUIKSharp-sub001/pkg/infra"
	"github.com/x5500/QUIKSharp-sub001/pkg/logging"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	undo := logging.InitGlobal(cfg.ServiceName, logging.INFO)
	defer undo()

	mgTool := infra.GetMigrateTool()
	mgTool.Migrate("file://migration/sql", cfg.JournalDB.MigrationConnURL)
}
