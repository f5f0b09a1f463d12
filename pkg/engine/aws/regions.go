package aws

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// KnownRegions is used when the region list cannot be fetched.
var KnownRegions = []string{
	"af-south-1",
	"ap-east-1",
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-northeast-3",
	"ap-south-1",
	"ap-south-2",
	"ap-southeast-1",
	"ap-southeast-2",
	"ap-southeast-3",
	"ap-southeast-4",
	"ap-southeast-5",
	"ap-southeast-7",
	"ca-central-1",
	"ca-west-1",
	"eu-central-1",
	"eu-central-2",
	"eu-north-1",
	"eu-south-1",
	"eu-south-2",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"il-central-1",
	"me-central-1",
	"me-south-1",
	"mx-central-1",
	"sa-east-1",
	"us-east-1",
	"us-east-2",
	"us-west-1",
	"us-west-2",
}

// Regions returns every region name of the partition, sorted. It is
// fetched once per session.
func (s *Session) Regions(ctx context.Context) []string {
	s.regionsOnce.Do(func() {
		c := clientFor(&s.clients, clientKey{service: "ec2", region: s.Region, account: s.Account},
			func() EC2API { return s.API.EC2(s.Default.ConfigForRegion(s.Region)) })
		regions, err := describeRegions(ctx, c)
		if err != nil || len(regions) == 0 {
			s.logger().Debug("falling back to the built-in region list", "error", err)
			regions = slices.Clone(KnownRegions)
		}
		slices.Sort(regions)
		s.regions = regions
	})
	return s.regions
}

// IsRegion reports whether name is a known region.
func (s *Session) IsRegion(ctx context.Context, name string) bool {
	_, ok := slices.BinarySearch(s.Regions(ctx), name)
	return ok
}

func describeRegions(ctx context.Context, c EC2API) ([]string, error) {
	out, err := c.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(true)})
	if err != nil {
		return nil, err
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, aws.ToString(r.RegionName))
	}
	return regions, nil
}
